package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/callshield/internal/flagx"
	"github.com/dmitrijs2005/callshield/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	DatabasePath         string         `json:"database_path"`
	ServerEndpointAddr   string         `json:"server_endpoint_addr"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	SyncInterval         timex.Duration `json:"sync_interval"`
	RetryDelay           timex.Duration `json:"retry_delay"`
	SyncDebounce         timex.Duration `json:"sync_debounce"`
	DeviceAreaCode       string         `json:"device_area_code"`
	HashKey              string         `json:"hash_key"`
	CommunityRelevantTTL timex.Duration `json:"community_relevant_ttl"`
	CommunityDefaultTTL  timex.Duration `json:"community_default_ttl"`
	TrustThreshold       int            `json:"trust_threshold"`
	BlockThreshold       int            `json:"block_threshold"`
	LogLevel             string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from a JSON file. Keys that
// are absent or zero leave the current value untouched. Read and unmarshal
// errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DeviceAreaCode, jc.DeviceAreaCode)
	setString(&cfg.HashKey, jc.HashKey)
	setString(&cfg.LogLevel, jc.LogLevel)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.SyncInterval, jc.SyncInterval)
	setDuration(&cfg.RetryDelay, jc.RetryDelay)
	setDuration(&cfg.SyncDebounce, jc.SyncDebounce)
	setDuration(&cfg.CommunityRelevantTTL, jc.CommunityRelevantTTL)
	setDuration(&cfg.CommunityDefaultTTL, jc.CommunityDefaultTTL)
	if jc.TrustThreshold != 0 {
		cfg.TrustThreshold = jc.TrustThreshold
	}
	if jc.BlockThreshold != 0 {
		cfg.BlockThreshold = jc.BlockThreshold
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration[D ~int64](dst *D, v timex.Duration) {
	if v.Duration != 0 {
		*dst = D(v.Duration)
	}
}

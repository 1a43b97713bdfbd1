package config

import (
	"time"

	"github.com/dmitrijs2005/callshield/internal/domain"
)

// Config holds runtime settings for the CallShield CLI.
//
// Units: all intervals are time.Duration. Thresholds are scores in 0..100.
type Config struct {
	DatabasePath        string
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration

	SyncInterval time.Duration
	RetryDelay   time.Duration
	SyncDebounce time.Duration

	// DeviceAreaCode enables the local area match factor when set.
	DeviceAreaCode string
	// HashKey selects the keyed hasher. Empty means the legacy hasher.
	HashKey string

	CommunityRelevantTTL time.Duration
	CommunityDefaultTTL  time.Duration

	TrustThreshold int
	BlockThreshold int

	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "callshield.db"
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.SyncInterval = 5 * time.Minute
	c.RetryDelay = 30 * time.Second
	c.SyncDebounce = 2 * time.Second
	c.CommunityRelevantTTL = domain.DefaultTTLPolicy.Relevant
	c.CommunityDefaultTTL = domain.DefaultTTLPolicy.Default
	c.TrustThreshold = 75
	c.BlockThreshold = 30
	c.LogLevel = "info"
}

// TTLPolicy returns the community cache policy described by c.
func (c *Config) TTLPolicy() domain.TTLPolicy {
	return domain.TTLPolicy{Relevant: c.CommunityRelevantTTL, Default: c.CommunityDefaultTTL}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package domain

import "time"

// TTLPolicy controls how long community data stays fresh in the local cache.
type TTLPolicy struct {
	Relevant time.Duration
	Default  time.Duration
}

// DefaultTTLPolicy refreshes numbers with any blocks or reports every 6 hours
// and everything else daily.
var DefaultTTLPolicy = TTLPolicy{Relevant: 6 * time.Hour, Default: 24 * time.Hour}

// CommunityDataEntry is the anonymized aggregate other devices contributed
// for one hash.
type CommunityDataEntry struct {
	PhoneHash      string     `json:"phone_hash"`
	BlockCount     int        `json:"block_count"`
	ReportCount    int        `json:"report_count"`
	ReportSeverity float64    `json:"report_severity"`
	Categories     []Category `json:"categories,omitempty"`
	LocalMatch     bool       `json:"local_match"`
	FetchedAt      time.Time  `json:"fetched_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// Relevant reports whether anyone blocked or reported the number.
func (e *CommunityDataEntry) Relevant() bool {
	return e != nil && (e.BlockCount > 0 || e.ReportCount > 0)
}

// Empty reports whether the entry carries no evidence at all.
func (e *CommunityDataEntry) Empty() bool {
	return e == nil || (e.BlockCount == 0 && e.ReportCount == 0 && len(e.Categories) == 0)
}

// Fresh reports whether the entry may be served at now without a refresh.
func (e *CommunityDataEntry) Fresh(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// Stamp sets FetchedAt and derives ExpiresAt from p.
func (e *CommunityDataEntry) Stamp(now time.Time, p TTLPolicy) {
	ttl := p.Default
	if e.Relevant() {
		ttl = p.Relevant
	}
	e.FetchedAt = now
	e.ExpiresAt = now.Add(ttl)
}

package models

import (
	"time"

	"github.com/dmitrijs2005/callshield/internal/domain"
)

// Action is what the UI should do with an incoming call.
type Action string

const (
	ActionAllow Action = "allow"
	ActionBlock Action = "block"
	ActionAsk   Action = "ask"
)

// Preferences are the user's thresholds for RecommendedAction.
type Preferences struct {
	TrustThreshold int
	BlockThreshold int
}

var DefaultPreferences = Preferences{TrustThreshold: 75, BlockThreshold: 30}

// Reputation is the answer to a lookup.
type Reputation struct {
	PhoneNumber string
	PhoneHash   string
	ScoreResult
	Community        *domain.CommunityDataEntry
	HasLocalData     bool
	HasCommunityData bool
	Action           Action
	UpdatedAt        time.Time
}

// Statistics summarises the local record set.
type Statistics struct {
	TotalNumbers int
	Blocked      int
	Accepted     int
	Reported     int
	ByCategory   map[domain.Category]int
	PendingSync  int
	LastSync     time.Time
}

// Package anonymize strips identifying data from events before they leave
// the device.
package anonymize

import (
	"time"

	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/phone"
	"github.com/google/uuid"
)

// Contribution is an event as observed on the device, before anonymization.
// Only Type, Details and a coarse Timestamp survive Anonymize.
type Contribution struct {
	PhoneNumber string
	DeviceID    string
	UserID      string
	IPAddress   string
	Location    string
	Timestamp   time.Time
	Details     domain.EventDetails
}

// Anonymizer turns contributions into shareable events.
type Anonymizer struct {
	hasher phone.Hasher
	newID  func() string
}

// New returns an Anonymizer that hashes numbers with h.
func New(h phone.Hasher) *Anonymizer {
	return &Anonymizer{hasher: h, newID: uuid.NewString}
}

// Hash returns the shareable identifier for a normalized number.
func (a *Anonymizer) Hash(normalized string) string {
	return a.hasher.Hash(normalized)
}

// Anonymize replaces the number with its hash, drops device, user, network
// and location fields, truncates the timestamp to the hour in UTC and
// attaches a fresh random id. Free-text fields in the details are removed.
func (a *Anonymizer) Anonymize(c Contribution) domain.ReputationEvent {
	d := sanitize(c.Details)
	var t domain.EventType
	if d != nil {
		t = d.EventType()
	}
	return domain.ReputationEvent{
		ID:        a.newID(),
		Timestamp: c.Timestamp.UTC().Truncate(time.Hour),
		PhoneHash: a.hasher.Hash(phone.Normalize(c.PhoneNumber)),
		Type:      t,
		Details:   d,
	}
}

// SanitizeEvent prepares an already hashed local event for sharing: the
// timestamp is coarsened and free text removed. The ID is kept so replicas
// can deduplicate the event.
func SanitizeEvent(e domain.ReputationEvent) domain.ReputationEvent {
	return domain.ReputationEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Truncate(time.Hour),
		PhoneHash: e.PhoneHash,
		Type:      e.Type,
		Details:   sanitize(e.Details),
	}
}

func sanitize(d domain.EventDetails) domain.EventDetails {
	switch v := d.(type) {
	case domain.BlockDetails:
		return domain.BlockDetails{}
	case domain.ReportDetails:
		v.Comment = ""
		return v
	default:
		return d
	}
}

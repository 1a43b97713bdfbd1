package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/callshield/internal/timex"
)

// EventType names what happened to a number on a device.
type EventType string

const (
	EventBlock        EventType = "block"
	EventUnblock      EventType = "unblock"
	EventAllow        EventType = "allow"
	EventReport       EventType = "report"
	EventCallAnswered EventType = "call_answered"
	EventCallRejected EventType = "call_rejected"
)

// Contributed reports whether events of this type are shared with the
// community.
func (t EventType) Contributed() bool {
	return t == EventBlock || t == EventReport
}

// EventDetails is the per-type payload of a ReputationEvent. Each event type
// has exactly one details struct.
type EventDetails interface {
	EventType() EventType
}

type BlockDetails struct {
	Reason string `json:"reason,omitempty"`
}

type UnblockDetails struct{}

type AllowDetails struct{}

// ReportDetails describes a user report. Severity is 1..5.
type ReportDetails struct {
	Category Category `json:"category"`
	Severity int      `json:"severity"`
	Comment  string   `json:"comment,omitempty"`
}

// CallDetails records one call. Answered selects between call_answered and
// call_rejected.
type CallDetails struct {
	Answered bool           `json:"answered"`
	Incoming bool           `json:"incoming"`
	Duration timex.Duration `json:"duration"`
}

func (BlockDetails) EventType() EventType   { return EventBlock }
func (UnblockDetails) EventType() EventType { return EventUnblock }
func (AllowDetails) EventType() EventType   { return EventAllow }
func (ReportDetails) EventType() EventType  { return EventReport }

func (d CallDetails) EventType() EventType {
	if d.Answered {
		return EventCallAnswered
	}
	return EventCallRejected
}

const (
	MinReportSeverity     = 1
	MaxReportSeverity     = 5
	DefaultReportSeverity = 3
)

// ValidateDetails checks the fields that carry ranges.
func ValidateDetails(d EventDetails) error {
	switch v := d.(type) {
	case nil:
		return fmt.Errorf("event details are required")
	case ReportDetails:
		if v.Severity < MinReportSeverity || v.Severity > MaxReportSeverity {
			return fmt.Errorf("report severity must be %d..%d, got %d", MinReportSeverity, MaxReportSeverity, v.Severity)
		}
		if v.Category != "" && !v.Category.Valid() {
			return fmt.Errorf("unknown report category %q", v.Category)
		}
	case CallDetails:
		if v.Duration.Duration < 0 {
			return fmt.Errorf("call duration must not be negative")
		}
	}
	return nil
}

// DecodeDetails unmarshals raw into the details struct for t.
func DecodeDetails(t EventType, raw json.RawMessage) (EventDetails, error) {
	var (
		d   EventDetails
		err error
	)
	switch t {
	case EventBlock:
		var v BlockDetails
		err = unmarshalOptional(raw, &v)
		d = v
	case EventUnblock:
		d = UnblockDetails{}
	case EventAllow:
		d = AllowDetails{}
	case EventReport:
		var v ReportDetails
		err = unmarshalOptional(raw, &v)
		d = v
	case EventCallAnswered, EventCallRejected:
		var v CallDetails
		err = unmarshalOptional(raw, &v)
		v.Answered = t == EventCallAnswered
		d = v
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", t, err)
	}
	return d, nil
}

func unmarshalOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// ReputationEvent is one observation about a number. Locally it lives in a
// record's bounded event log; anonymized copies travel through the sync queue.
type ReputationEvent struct {
	ID         string
	Timestamp  time.Time
	PhoneHash  string
	Type       EventType
	Details    EventDetails
	Synced     bool
	RetryCount int
}

type eventJSON struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	PhoneHash  string          `json:"phone_hash"`
	Type       EventType       `json:"type"`
	Details    json.RawMessage `json:"details,omitempty"`
	Synced     bool            `json:"synced"`
	RetryCount int             `json:"retry_count"`
}

func (e ReputationEvent) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(eventJSON{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		PhoneHash:  e.PhoneHash,
		Type:       e.Type,
		Details:    raw,
		Synced:     e.Synced,
		RetryCount: e.RetryCount,
	})
}

func (e *ReputationEvent) UnmarshalJSON(b []byte) error {
	var w eventJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	d, err := DecodeDetails(w.Type, w.Details)
	if err != nil {
		return err
	}
	*e = ReputationEvent{
		ID:         w.ID,
		Timestamp:  w.Timestamp,
		PhoneHash:  w.PhoneHash,
		Type:       w.Type,
		Details:    d,
		Synced:     w.Synced,
		RetryCount: w.RetryCount,
	}
	return nil
}

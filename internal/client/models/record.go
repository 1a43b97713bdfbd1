// Package models defines the client-side reputation record and the values
// derived from it by scoring.
package models

import (
	"time"

	"github.com/dmitrijs2005/callshield/internal/domain"
)

// MaxCallHistory bounds PersonalData.CallHistory.
const MaxCallHistory = 50

// Report is one report the user filed for a number.
type Report struct {
	Category  domain.Category `json:"category"`
	Severity  int             `json:"severity"`
	Timestamp time.Time       `json:"timestamp"`
}

// CallRecord is one call the device saw.
type CallRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Answered  bool          `json:"answered"`
}

// PersonalData is everything this device's user did with a number. It never
// leaves the device.
type PersonalData struct {
	Blocked     bool          `json:"blocked"`
	Accepted    bool          `json:"accepted"`
	Reports     []Report      `json:"reports,omitempty"`
	CallHistory []CallRecord  `json:"call_history,omitempty"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// Empty reports whether there is no personal evidence.
func (p *PersonalData) Empty() bool {
	return p == nil || (!p.Blocked && !p.Accepted && len(p.Reports) == 0 && len(p.CallHistory) == 0)
}

// AddCall appends c, prunes the oldest entries beyond MaxCallHistory and
// recomputes AvgDuration over answered calls.
func (p *PersonalData) AddCall(c CallRecord) {
	p.CallHistory = append(p.CallHistory, c)
	if n := len(p.CallHistory); n > MaxCallHistory {
		p.CallHistory = append([]CallRecord(nil), p.CallHistory[n-MaxCallHistory:]...)
	}

	var (
		total time.Duration
		n     int
	)
	for _, call := range p.CallHistory {
		if call.Answered {
			total += call.Duration
			n++
		}
	}
	if n == 0 {
		p.AvgDuration = 0
		return
	}
	p.AvgDuration = total / time.Duration(n)
}

// Factor explains one contribution to a score.
type Factor struct {
	Factor      string  `json:"factor"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// ScoreResult is what scoring derives from the evidence.
type ScoreResult struct {
	Score      *int            `json:"score"`
	Category   domain.Category `json:"category"`
	Confidence int             `json:"confidence"`
	Factors    []Factor        `json:"factors,omitempty"`
}

// SharedState is what this record learnt from other replicas through merges.
type SharedState struct {
	ReportCount  int               `json:"report_count"`
	BlockCount   int               `json:"block_count"`
	ApproveCount int               `json:"approve_count"`
	Category     domain.Category   `json:"category,omitempty"`
	MergedScore  *float64          `json:"merged_score,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastMerged   time.Time         `json:"last_merged"`
}

// ReputationRecord is the per-number aggregate kept on the device.
type ReputationRecord struct {
	PhoneNumber  string                   `json:"phone_number"`
	PhoneHash    string                   `json:"phone_hash"`
	PersonalData PersonalData             `json:"personal_data"`
	Events       []domain.ReputationEvent `json:"events,omitempty"`
	ScoreResult
	Shared    SharedState `json:"shared"`
	FirstSeen time.Time   `json:"first_seen"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewRecord starts an empty record for a normalized number.
func NewRecord(number, hash string, now time.Time) *ReputationRecord {
	return &ReputationRecord{
		PhoneNumber: number,
		PhoneHash:   hash,
		ScoreResult: ScoreResult{Category: domain.CategoryUnknown},
		FirstSeen:   now,
		UpdatedAt:   now,
	}
}

// AppendEvent adds e to the bounded log, dropping the oldest entries.
func (r *ReputationRecord) AppendEvent(e domain.ReputationEvent) {
	r.Events = append(r.Events, e)
	if n := len(r.Events); n > domain.MaxEvents {
		r.Events = append([]domain.ReputationEvent(nil), r.Events[n-domain.MaxEvents:]...)
	}
}

// Touch advances UpdatedAt to now unless it is already later.
func (r *ReputationRecord) Touch(now time.Time) {
	if now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
}

// ToReputationData projects the record into the replica shape. Counters
// include both local evidence and what earlier merges taught us. The score is
// the lower of the current local score and the last merged one.
func (r *ReputationRecord) ToReputationData() domain.ReputationData {
	var reports, blocks, approvals int
	for _, e := range r.Events {
		switch e.Type {
		case domain.EventReport:
			reports++
		case domain.EventBlock:
			blocks++
		case domain.EventAllow:
			approvals++
		}
	}

	category := domain.MoreSevere(r.Category, r.Shared.Category)
	for _, rep := range r.PersonalData.Reports {
		category = domain.MoreSevere(category, rep.Category)
	}

	var score *float64
	switch {
	case r.Score != nil && r.Shared.MergedScore != nil:
		v := min(float64(*r.Score), *r.Shared.MergedScore)
		score = &v
	case r.Shared.MergedScore != nil:
		v := *r.Shared.MergedScore
		score = &v
	case r.Score != nil:
		v := float64(*r.Score)
		score = &v
	}

	var events []domain.ReputationEvent
	if len(r.Events) > 0 {
		events = make([]domain.ReputationEvent, len(r.Events))
		copy(events, r.Events)
	}

	return domain.ReputationData{
		PhoneHash:    r.PhoneHash,
		ReportCount:  max(reports, r.Shared.ReportCount),
		BlockCount:   max(blocks, r.Shared.BlockCount),
		ApproveCount: max(approvals, r.Shared.ApproveCount),
		LastUpdated:  r.UpdatedAt,
		Category:     category,
		Score:        score,
		Events:       events,
		Metadata:     copyMap(r.Shared.Metadata),
	}
}

// ApplyMerged stores a merge result back into the record. Local events the
// merge pruned stay pruned; the record's own score is left to scoring.
func (r *ReputationRecord) ApplyMerged(d domain.ReputationData, now time.Time) {
	r.Shared.ReportCount = max(r.Shared.ReportCount, d.ReportCount)
	r.Shared.BlockCount = max(r.Shared.BlockCount, d.BlockCount)
	r.Shared.ApproveCount = max(r.Shared.ApproveCount, d.ApproveCount)
	r.Shared.Category = domain.MoreSevere(r.Shared.Category, d.Category)
	if d.Score != nil {
		v := *d.Score
		r.Shared.MergedScore = &v
	}
	r.Shared.Metadata = copyMap(d.Metadata)
	r.Shared.LastMerged = now

	events := make([]domain.ReputationEvent, len(d.Events))
	copy(events, d.Events)
	// merged lists are newest first; the local log is oldest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	r.Events = events

	r.Touch(d.LastUpdated)
	r.Touch(now)
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

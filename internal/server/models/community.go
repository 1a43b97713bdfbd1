// Package models holds the server-side rows behind the community endpoints.
package models

import (
	"sort"
	"time"

	"github.com/dmitrijs2005/callshield/internal/domain"
)

// ContributedEvent is the dedup record of one anonymized event. Only the
// fields needed for aggregation are kept.
type ContributedEvent struct {
	ID         string
	PhoneHash  string
	Type       domain.EventType
	OccurredAt time.Time
}

// CommunityDelta is what one accepted event adds to a hash's aggregate.
type CommunityDelta struct {
	Blocks   int
	Reports  int
	Severity int
	Category domain.Category
}

// DeltaFor derives the aggregate change for an event. Events that are not
// contributed types yield ok=false.
func DeltaFor(e domain.ReputationEvent) (CommunityDelta, bool) {
	switch d := e.Details.(type) {
	case domain.BlockDetails:
		return CommunityDelta{Blocks: 1}, true
	case domain.ReportDetails:
		sev := d.Severity
		if sev < domain.MinReportSeverity || sev > domain.MaxReportSeverity {
			sev = domain.DefaultReportSeverity
		}
		cat := d.Category
		if cat == "" {
			cat = domain.CategorySpam
		}
		return CommunityDelta{Reports: 1, Severity: sev, Category: cat}, true
	}
	return CommunityDelta{}, false
}

// CommunityStats is the stored aggregate for one hash.
type CommunityStats struct {
	PhoneHash   string
	BlockCount  int
	ReportCount int
	SeveritySum int
	Categories  map[domain.Category]int
	UpdatedAt   time.Time
}

// ToEntry converts the aggregate into the wire shape. Categories are ordered
// by count, most frequent first.
func (s *CommunityStats) ToEntry() domain.CommunityDataEntry {
	e := domain.CommunityDataEntry{
		PhoneHash:   s.PhoneHash,
		BlockCount:  s.BlockCount,
		ReportCount: s.ReportCount,
	}
	if s.ReportCount > 0 {
		e.ReportSeverity = float64(s.SeveritySum) / float64(s.ReportCount)
	}
	for c := range s.Categories {
		e.Categories = append(e.Categories, c)
	}
	sort.Slice(e.Categories, func(i, j int) bool {
		ci, cj := s.Categories[e.Categories[i]], s.Categories[e.Categories[j]]
		if ci != cj {
			return ci > cj
		}
		return e.Categories[i] < e.Categories[j]
	})
	return e
}

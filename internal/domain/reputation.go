package domain

import (
	"math"
	"sort"
	"time"
)

// MaxEvents bounds every event log: a record's local history and the
// merged list exchanged with the server.
const MaxEvents = 20

const (
	scoreAverageWindow = 10.0
	localScoreWeight   = 0.6
	remoteScoreWeight  = 0.4
)

// ReputationData is the replica shape exchanged between devices and the
// server and reconciled with MergeReputationData.
type ReputationData struct {
	PhoneHash    string            `json:"phone_hash"`
	ReportCount  int               `json:"report_count"`
	BlockCount   int               `json:"block_count"`
	ApproveCount int               `json:"approve_count"`
	LastUpdated  time.Time         `json:"last_updated"`
	Category     Category          `json:"category"`
	Score        *float64          `json:"score,omitempty"`
	Events       []ReputationEvent `json:"events,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// MergeReputationData combines two replicas of the same record.
//
// Counters and LastUpdated take the maximum, Category the more severe value.
// Scores closer than 10 points are averaged 60/40 in favour of local,
// otherwise the lower one wins. Events are unioned by ID, newest first, and
// capped at MaxEvents. Metadata is merged shallowly with local winning.
//
// The score rule is only commutative pairwise; reconciling three or more
// replicas gives an order-dependent score.
func MergeReputationData(local, remote ReputationData) ReputationData {
	out := ReputationData{
		PhoneHash:    local.PhoneHash,
		ReportCount:  max(local.ReportCount, remote.ReportCount),
		BlockCount:   max(local.BlockCount, remote.BlockCount),
		ApproveCount: max(local.ApproveCount, remote.ApproveCount),
		LastUpdated:  laterOf(local.LastUpdated, remote.LastUpdated),
		Category:     MoreSevere(local.Category, remote.Category),
		Score:        mergeScore(local.Score, remote.Score),
		Events:       mergeEvents(local.Events, remote.Events),
		Metadata:     mergeMetadata(local.Metadata, remote.Metadata),
	}
	if out.PhoneHash == "" {
		out.PhoneHash = remote.PhoneHash
	}
	return out
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func mergeScore(local, remote *float64) *float64 {
	switch {
	case local == nil && remote == nil:
		return nil
	case local == nil:
		v := *remote
		return &v
	case remote == nil:
		v := *local
		return &v
	}
	l, r := *local, *remote
	var v float64
	if math.Abs(l-r) < scoreAverageWindow {
		v = localScoreWeight*l + remoteScoreWeight*r
	} else {
		v = math.Min(l, r)
	}
	return &v
}

func mergeEvents(local, remote []ReputationEvent) []ReputationEvent {
	if len(local) == 0 && len(remote) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]ReputationEvent, 0, len(local)+len(remote))
	for _, list := range [][]ReputationEvent{local, remote} {
		for _, e := range list {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > MaxEvents {
		out = out[:MaxEvents]
	}
	return out
}

func mergeMetadata(local, remote map[string]string) map[string]string {
	if len(local) == 0 && len(remote) == 0 {
		return nil
	}
	out := make(map[string]string, len(local)+len(remote))
	for k, v := range remote {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

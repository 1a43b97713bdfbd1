package domain

import (
	"encoding/json"
	"time"
)

// QueueStore names the logical store a queued change belongs to.
type QueueStore string

const (
	StoreEvents     QueueStore = "events"
	StoreReputation QueueStore = "reputation"
)

// Operation is what the server should do with a queued change.
type Operation string

const (
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	// OpClear drops every pending item locally and is never transmitted.
	OpClear Operation = "clear"
)

// SyncQueueItem is one pending change. The queue is the single source of
// truth for what still has to reach the server.
type SyncQueueItem struct {
	ID         string          `json:"id"`
	Store      QueueStore      `json:"store"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value,omitempty"`
	Operation  Operation       `json:"operation"`
	Timestamp  time.Time       `json:"timestamp"`
	Synced     bool            `json:"synced"`
	RetryCount int             `json:"retry_count"`
}

// Batch is the payload of one drain: everything snapshotted from the queue.
type Batch struct {
	SentAt      time.Time         `json:"sent_at"`
	Events      []ReputationEvent `json:"events,omitempty"`
	Reputations []ReputationData  `json:"reputations,omitempty"`
	Erase       []string          `json:"erase,omitempty"`
}

// Empty reports whether the batch carries nothing to transmit.
func (b *Batch) Empty() bool {
	return len(b.Events) == 0 && len(b.Reputations) == 0 && len(b.Erase) == 0
}

// Hashes returns every phone hash the batch touches, in first-seen order.
func (b *Batch) Hashes() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(h string) {
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	for _, e := range b.Events {
		add(e.PhoneHash)
	}
	for _, r := range b.Reputations {
		add(r.PhoneHash)
	}
	return out
}

// BatchResult is the server reply to a transmitted batch.
type BatchResult struct {
	Accepted    int              `json:"accepted"`
	Reputations []ReputationData `json:"reputations,omitempty"`
}

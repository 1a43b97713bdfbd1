package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/dmitrijs2005/callshield/internal/client/repositories/kv"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/domain"
)

// SyncQueue is the persisted list of changes waiting for the server. All
// mutations are serialized by one mutex; reads see a consistent snapshot.
type SyncQueue struct {
	mu   sync.Mutex
	repo kv.Repository
}

func NewSyncQueue(repo kv.Repository) *SyncQueue {
	return &SyncQueue{repo: repo}
}

// Append persists item.
func (q *SyncQueue) Append(ctx context.Context, item domain.SyncQueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return setJSON(ctx, q.repo, StoreSyncQueue, item.ID, item)
}

// List returns pending items oldest first.
func (q *SyncQueue) List(ctx context.Context) ([]domain.SyncQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list(ctx)
}

func (q *SyncQueue) list(ctx context.Context) ([]domain.SyncQueueItem, error) {
	raw, err := q.repo.GetAll(ctx, StoreSyncQueue)
	if err != nil {
		return nil, err
	}
	items := make([]domain.SyncQueueItem, 0, len(raw))
	for _, b := range raw {
		var it domain.SyncQueueItem
		if err := json.Unmarshal(b, &it); err != nil {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].ID < items[j].ID
		}
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	return items, nil
}

// Len returns the number of pending items.
func (q *SyncQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	raw, err := q.repo.GetAll(ctx, StoreSyncQueue)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Remove deletes the given items. Items queued after a snapshot was taken
// are untouched.
func (q *SyncQueue) Remove(ctx context.Context, ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		if err := q.repo.Remove(ctx, StoreSyncQueue, id); err != nil {
			return err
		}
	}
	return nil
}

// RemoveWhere deletes every item matching pred and returns how many went.
func (q *SyncQueue) RemoveWhere(ctx context.Context, pred func(domain.SyncQueueItem) bool) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.list(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if !pred(it) {
			continue
		}
		if err := q.repo.Remove(ctx, StoreSyncQueue, it.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RecordFailure increments RetryCount on the given items that are still
// queued and removes those reaching maxRetries. It returns the dropped items.
func (q *SyncQueue) RecordFailure(ctx context.Context, ids []string, maxRetries int) ([]domain.SyncQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dropped []domain.SyncQueueItem
	for _, id := range ids {
		var it domain.SyncQueueItem
		b, err := q.repo.Get(ctx, StoreSyncQueue, id)
		if errors.Is(err, common.ErrorNotFound) {
			// removed by a purge while the drain was in flight
			continue
		}
		if err != nil {
			return dropped, err
		}
		if err := json.Unmarshal(b, &it); err != nil {
			continue
		}

		it.RetryCount++
		if it.RetryCount >= maxRetries {
			if err := q.repo.Remove(ctx, StoreSyncQueue, id); err != nil {
				return dropped, err
			}
			dropped = append(dropped, it)
			continue
		}
		if err := setJSON(ctx, q.repo, StoreSyncQueue, id, it); err != nil {
			return dropped, err
		}
	}
	return dropped, nil
}

// Clear drops every pending item.
func (q *SyncQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repo.Clear(ctx, StoreSyncQueue)
}

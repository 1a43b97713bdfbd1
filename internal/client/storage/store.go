// Package storage is the device's reputation store: typed views over a
// kv.Repository for records, cached community data, the sync queue and
// small bits of metadata.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/callshield/internal/client/repositories/kv"
	"github.com/dmitrijs2005/callshield/internal/common"
)

// Store names inside the kv repository.
const (
	StoreRecords    = "records"
	StorePhoneIndex = "phone_index"
	StoreCommunity  = "community_cache"
	StoreSyncQueue  = "sync_queue"
	StoreMeta       = "meta"
)

type Store struct {
	Records   *Records
	Community *CommunityCache
	Queue     *SyncQueue
	Meta      *Meta
}

func New(repo kv.Repository) *Store {
	return &Store{
		Records:   NewRecords(repo),
		Community: NewCommunityCache(repo),
		Queue:     NewSyncQueue(repo),
		Meta:      NewMeta(repo),
	}
}

func getJSON(ctx context.Context, repo kv.Repository, store, key string, v any) error {
	b, err := repo.Get(ctx, store, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: decode %s[%s]: %v", common.ErrStorage, store, key, err)
	}
	return nil
}

func setJSON(ctx context.Context, repo kv.Repository, store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s[%s]: %v", common.ErrStorage, store, key, err)
	}
	return repo.Set(ctx, store, key, b)
}

package storage

import (
	"context"

	"github.com/dmitrijs2005/callshield/internal/client/repositories/kv"
	"github.com/dmitrijs2005/callshield/internal/domain"
)

// CommunityCache keeps fetched community data keyed by phone hash. Freshness
// is the caller's decision; entries carry their own ExpiresAt.
type CommunityCache struct {
	repo kv.Repository
}

func NewCommunityCache(repo kv.Repository) *CommunityCache {
	return &CommunityCache{repo: repo}
}

func (c *CommunityCache) Get(ctx context.Context, hash string) (*domain.CommunityDataEntry, error) {
	var e domain.CommunityDataEntry
	if err := getJSON(ctx, c.repo, StoreCommunity, hash, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *CommunityCache) Put(ctx context.Context, e *domain.CommunityDataEntry) error {
	return setJSON(ctx, c.repo, StoreCommunity, e.PhoneHash, e)
}

func (c *CommunityCache) Remove(ctx context.Context, hash string) error {
	return c.repo.Remove(ctx, StoreCommunity, hash)
}

func (c *CommunityCache) Clear(ctx context.Context) error {
	return c.repo.Clear(ctx, StoreCommunity)
}

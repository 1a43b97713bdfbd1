package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/callshield/internal/client/repositories/kv"
	"github.com/dmitrijs2005/callshield/internal/common"
)

const metaLastSync = "last_sync"

type Meta struct {
	repo kv.Repository
}

func NewMeta(repo kv.Repository) *Meta {
	return &Meta{repo: repo}
}

// LastSync returns the time of the last successful drain, zero if none.
func (m *Meta) LastSync(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := getJSON(ctx, m.repo, StoreMeta, metaLastSync, &t)
	if errors.Is(err, common.ErrorNotFound) {
		return time.Time{}, nil
	}
	return t, err
}

func (m *Meta) SetLastSync(ctx context.Context, t time.Time) error {
	return setJSON(ctx, m.repo, StoreMeta, metaLastSync, t)
}

package reputation

import (
	"context"
	"time"

	"github.com/dmitrijs2005/callshield/internal/domain"
)

// Repository stores the shared ReputationData per hash.
type Repository interface {
	Get(ctx context.Context, hash string) (*domain.ReputationData, error)
	// GetForUpdate is Get that also locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, hash string) (*domain.ReputationData, error)
	Upsert(ctx context.Context, d *domain.ReputationData, now time.Time) error
	Delete(ctx context.Context, hash string) error
}

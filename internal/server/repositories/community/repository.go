package community

import (
	"context"
	"time"

	"github.com/dmitrijs2005/callshield/internal/server/models"
)

// Repository stores contributed event ids and the per-hash aggregates built
// from them.
type Repository interface {
	// InsertEvent records e and reports whether it was new. Replays of an
	// already stored id return false and change nothing.
	InsertEvent(ctx context.Context, e *models.ContributedEvent) (bool, error)
	Apply(ctx context.Context, hash string, d models.CommunityDelta, now time.Time) error
	Get(ctx context.Context, hash string) (*models.CommunityStats, error)
	Delete(ctx context.Context, hash string) error
}

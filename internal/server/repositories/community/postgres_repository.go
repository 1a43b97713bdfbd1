// Package community implements the PostgreSQL storage of community
// aggregates.
package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/dbx"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertEvent(ctx context.Context, e *models.ContributedEvent) (bool, error) {
	query :=
		`INSERT INTO contributed_events (id, phone_hash, type, occurred_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, e.ID, e.PhoneHash, string(e.Type), e.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Apply(ctx context.Context, hash string, d models.CommunityDelta, now time.Time) error {
	query :=
		`INSERT INTO community_stats (phone_hash, block_count, report_count, severity_sum, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (phone_hash) DO UPDATE SET
		   block_count  = community_stats.block_count + EXCLUDED.block_count,
		   report_count = community_stats.report_count + EXCLUDED.report_count,
		   severity_sum = community_stats.severity_sum + EXCLUDED.severity_sum,
		   updated_at   = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, hash, d.Blocks, d.Reports, d.Severity, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if d.Category == "" {
		return nil
	}

	query =
		`INSERT INTO community_categories (phone_hash, category, count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (phone_hash, category) DO UPDATE SET count = community_categories.count + 1`

	if _, err := r.db.ExecContext(ctx, query, hash, string(d.Category)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, hash string) (*models.CommunityStats, error) {
	query :=
		`SELECT phone_hash, block_count, report_count, severity_sum, updated_at
		 FROM community_stats
		 WHERE phone_hash = $1`

	s := &models.CommunityStats{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&s.PhoneHash, &s.BlockCount, &s.ReportCount, &s.SeveritySum, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT category, count FROM community_categories WHERE phone_hash = $1`, hash)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c string
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if s.Categories == nil {
			s.Categories = make(map[domain.Category]int)
		}
		s.Categories[domain.Category(c)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// Delete erases the aggregate and every stored event id for hash.
func (r *PostgresRepository) Delete(ctx context.Context, hash string) error {
	for _, q := range []string{
		`DELETE FROM community_categories WHERE phone_hash = $1`,
		`DELETE FROM community_stats WHERE phone_hash = $1`,
		`DELETE FROM contributed_events WHERE phone_hash = $1`,
	} {
		if _, err := r.db.ExecContext(ctx, q, hash); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

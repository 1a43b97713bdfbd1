// Package reputation implements the PostgreSQL storage of shared reputation
// rows.
package reputation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/dbx"
	"github.com/dmitrijs2005/callshield/internal/domain"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, hash string) (*domain.ReputationData, error) {
	return r.get(ctx, `SELECT data FROM shared_reputation WHERE phone_hash = $1`, hash)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, hash string) (*domain.ReputationData, error) {
	return r.get(ctx, `SELECT data FROM shared_reputation WHERE phone_hash = $1 FOR UPDATE`, hash)
}

func (r *PostgresRepository) get(ctx context.Context, query, hash string) (*domain.ReputationData, error) {
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, hash).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	var d domain.ReputationData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: corrupt reputation row %q: %v", common.ErrorInternal, hash, err)
	}
	return &d, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, d *domain.ReputationData, now time.Time) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	query :=
		`INSERT INTO shared_reputation (phone_hash, data, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (phone_hash) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, d.PhoneHash, raw, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, hash string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shared_reputation WHERE phone_hash = $1`, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

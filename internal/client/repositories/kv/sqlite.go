package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/callshield/internal/client/migrations"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/dbx"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// OpenSQLite opens (creating if needed) the database at dsn and migrates it.
// A single connection is used so ":memory:" databases behave like files.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrStorage, dsn, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: configure %s: %v", common.ErrStorage, dsn, err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", common.ErrStorage, err)
	}
	return db, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, store, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE store = ? AND key = ?`, store, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s[%s]: %w", store, key, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get %s[%s]: %v", common.ErrStorage, store, key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, store, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (store, key, value, updated_at) VALUES (?, ?, ?, strftime('%s','now'))
		ON CONFLICT(store, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, store, key, value)
	if err != nil {
		return fmt.Errorf("%w: failed to set %s[%s]: %v", common.ErrStorage, store, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, store, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE store = ? AND key = ?`, store, key)
	if err != nil {
		return fmt.Errorf("%w: failed to remove %s[%s]: %v", common.ErrStorage, store, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, store string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE store = ?`, store)
	if err != nil {
		return fmt.Errorf("%w: failed to clear %s: %v", common.ErrStorage, store, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE store = ?`, store)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %s: %v", common.ErrStorage, store, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: failed to scan %s row: %v", common.ErrStorage, store, err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate %s rows: %v", common.ErrStorage, store, err)
	}

	return result, nil
}

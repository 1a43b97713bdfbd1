package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"github.com/dmitrijs2005/callshield/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForDB_RetriesUntilReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	require.NoError(t, waitForDB(context.Background(), db, 5*time.Second, logging.NewNopLogger()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForDB_GivesUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 10; i++ {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	}

	err = waitForDB(context.Background(), db, 100*time.Millisecond, logging.NewNopLogger())
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewApp_OpenError(t *testing.T) {
	orig := sqlOpen
	t.Cleanup(func() { sqlOpen = orig })
	sqlOpen = func(driverName, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driverName)
		return nil, errors.New("bad dsn")
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()

	_, err := NewApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "db init error: bad dsn")
}

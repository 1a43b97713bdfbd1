package community

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock, db
}

func TestInsertEvent_NewAndReplayed(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	q := `(?s)INSERT INTO contributed_events .* ON CONFLICT \(id\) DO NOTHING`
	e := &models.ContributedEvent{ID: "e1", PhoneHash: "h", Type: domain.EventBlock, OccurredAt: now}

	mock.ExpectExec(q).WithArgs("e1", "h", "block", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("e1", "h", "block", now).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertEvent(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertEvent(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvent_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectExec(`INSERT INTO contributed_events`).WillReturnError(errors.New("db down"))

	_, err := repo.InsertEvent(context.Background(), &models.ContributedEvent{ID: "e1"})
	assert.ErrorContains(t, err, "db error: db down")
}

func TestApply_WithAndWithoutCategory(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT INTO community_stats .* ON CONFLICT \(phone_hash\) DO UPDATE`).
		WithArgs("h", 0, 1, 5, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO community_categories .* DO UPDATE SET count = community_categories.count \+ 1`).
		WithArgs("h", "scam").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO community_stats`).
		WithArgs("h", 1, 0, 0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Apply(context.Background(), "h", models.CommunityDelta{Reports: 1, Severity: 5, Category: domain.CategoryScam}, now))
	require.NoError(t, repo.Apply(context.Background(), "h", models.CommunityDelta{Blocks: 1}, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Found(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT phone_hash, block_count, report_count, severity_sum, updated_at\s+FROM community_stats`).
		WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"phone_hash", "block_count", "report_count", "severity_sum", "updated_at"}).
			AddRow("h", 3, 2, 7, now))
	mock.ExpectQuery(`SELECT category, count FROM community_categories`).
		WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).AddRow("spam", 1).AddRow("scam", 1))

	got, err := repo.Get(context.Background(), "h")
	require.NoError(t, err)
	assert.Equal(t, &models.CommunityStats{
		PhoneHash:   "h",
		BlockCount:  3,
		ReportCount: 2,
		SeveritySum: 7,
		Categories:  map[domain.Category]int{domain.CategorySpam: 1, domain.CategoryScam: 1},
		UpdatedAt:   now,
	}, got)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectQuery(`FROM community_stats`).WithArgs("h").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "h")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_CategoryQueryError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectQuery(`FROM community_stats`).
		WillReturnRows(sqlmock.NewRows([]string{"phone_hash", "block_count", "report_count", "severity_sum", "updated_at"}).
			AddRow("h", 1, 0, 0, now))
	mock.ExpectQuery(`FROM community_categories`).WillReturnError(errors.New("boom"))

	_, err := repo.Get(context.Background(), "h")
	assert.ErrorContains(t, err, "db error: boom")
}

func TestDelete(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectExec(`DELETE FROM community_categories`).WithArgs("h").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM community_stats`).WithArgs("h").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM contributed_events`).WithArgs("h").WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, repo.Delete(context.Background(), "h"))
	require.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanha1201/app-review-analyser/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetThemeByName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, description, created_at FROM themes WHERE name = \$1`).
		WithArgs("Unknown Theme").
		WillReturnError(pgx.ErrNoRows)

	theme, err := s.GetThemeByName(context.Background(), "Unknown Theme")
	require.NoError(t, err)
	assert.Nil(t, theme)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetThemeByName_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, name, description, created_at FROM themes WHERE name = \$1`).
		WithArgs("Crashes").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow("theme-1", "Crashes", "App stability problems", now))

	theme, err := s.GetThemeByName(context.Background(), "Crashes")
	require.NoError(t, err)
	require.NotNil(t, theme)
	assert.Equal(t, "theme-1", theme.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AssignTheme(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO review_themes`).
		WithArgs(pgxmock.AnyArg(), "review-1", "theme-1", 0.85, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AssignTheme(context.Background(), "review-1", "theme-1", 0.85)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateReview_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reviews`).
		WithArgs(pgxmock.AnyArg(), "app_store", 4, "solid app", "great release", "",
			pgxmock.AnyArg(), "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	review := model.Review{
		Platform:   model.PlatformAppStore,
		Rating:     4,
		Title:      "solid app",
		ReviewText: "great release",
		ReviewDate: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
	}
	inserted, err := s.CreateReview(context.Background(), &review)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NotEmpty(t, review.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkReviewsProcessed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE reviews SET processed_at = \$1 WHERE id = ANY\(\$2\)`).
		WithArgs(pgxmock.AnyArg(), []string{"r1", "r2"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, s.MarkReviewsProcessed(context.Background(), []string{"r1", "r2"}))
	assert.NoError(t, mock.ExpectationsWereMet())

	// No-op on empty input, no query expected.
	require.NoError(t, s.MarkReviewsProcessed(context.Background(), nil))
}

func TestPostgresStore_GetLatestReport_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, week_start, week_end, content, email_sent_at, created_at`).
		WillReturnError(pgx.ErrNoRows)

	report, err := s.GetLatestReport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkReportEmailed_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE weekly_reports SET email_sent_at`).
		WithArgs(pgxmock.AnyArg(), "missing-report").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkReportEmailed(context.Background(), "missing-report", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

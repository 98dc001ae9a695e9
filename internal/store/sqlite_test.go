package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanha1201/app-review-analyser/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testReview(platform model.Platform, date time.Time, text string) model.Review {
	return model.Review{
		Platform:   platform,
		Rating:     4,
		Title:      "solid app",
		ReviewText: text,
		ReviewDate: date,
	}
}

// --- Reviews ---

func TestSQLite_BulkCreateReviews_SkipsDuplicates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

	n, err := st.BulkCreateReviews(ctx, []model.Review{
		testReview(model.PlatformAppStore, date, "first review"),
		testReview(model.PlatformGooglePlay, date, "same timestamp, other platform"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same platform+date again: must not insert.
	n, err = st.BulkCreateReviews(ctx, []model.Review{
		testReview(model.PlatformAppStore, date, "resubmitted review"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	reviews, err := st.ListReviews(ctx, ReviewFilter{})
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestSQLite_CreateReview_DedupOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	first := testReview(model.PlatformAppStore, date, "loving the new update")
	inserted, err := st.CreateReview(ctx, &first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, first.ID)

	dupe := testReview(model.PlatformAppStore, date, "loving the new update")
	inserted, err = st.CreateReview(ctx, &dupe)
	require.NoError(t, err)
	assert.False(t, inserted)

	reviews, err := st.ListReviews(ctx, ReviewFilter{})
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestSQLite_ListReviews_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := st.BulkCreateReviews(ctx, []model.Review{
		testReview(model.PlatformAppStore, base, "old one"),
		testReview(model.PlatformAppStore, base.AddDate(0, 0, 10), "newer one"),
		testReview(model.PlatformGooglePlay, base.AddDate(0, 0, 10), "play review"),
	})
	require.NoError(t, err)

	got, err := st.ListReviews(ctx, ReviewFilter{Platform: model.PlatformGooglePlay})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "play review", got[0].ReviewText)

	got, err = st.ListReviews(ctx, ReviewFilter{Start: base.AddDate(0, 0, 5)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.ListReviews(ctx, ReviewFilter{End: base.AddDate(0, 0, 5)})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLite_MarkReviewsProcessed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := st.BulkCreateReviews(ctx, []model.Review{
		testReview(model.PlatformAppStore, base, "one"),
		testReview(model.PlatformAppStore, base.Add(time.Hour), "two"),
	})
	require.NoError(t, err)

	unprocessed, err := st.ListReviews(ctx, ReviewFilter{OnlyNew: true})
	require.NoError(t, err)
	require.Len(t, unprocessed, 2)

	require.NoError(t, st.MarkReviewsProcessed(ctx, []string{unprocessed[0].ID}))

	remaining, err := st.ListReviews(ctx, ReviewFilter{OnlyNew: true})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.NotEqual(t, unprocessed[0].ID, remaining[0].ID)
}

// --- Themes ---

func TestSQLite_Themes_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateTheme(ctx, "Performance Issues", "Crashes, lag, and slow loading")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := st.GetThemeByName(ctx, "Performance Issues")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)

	missing, err := st.GetThemeByName(ctx, "No Such Theme")
	require.NoError(t, err)
	assert.Nil(t, missing)

	themes, err := st.ListThemes(ctx)
	require.NoError(t, err)
	assert.Len(t, themes, 1)
}

func TestSQLite_AssignTheme_ReplacesPrevious(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	_, err := st.BulkCreateReviews(ctx, []model.Review{
		testReview(model.PlatformAppStore, date, "keeps crashing on login"),
	})
	require.NoError(t, err)
	reviews, err := st.ListReviews(ctx, ReviewFilter{})
	require.NoError(t, err)
	reviewID := reviews[0].ID

	t1, err := st.CreateTheme(ctx, "Crashes", "App stability problems")
	require.NoError(t, err)
	t2, err := st.CreateTheme(ctx, "Login Issues", "Authentication problems")
	require.NoError(t, err)

	require.NoError(t, st.AssignTheme(ctx, reviewID, t1.ID, 0.9))
	require.NoError(t, st.AssignTheme(ctx, reviewID, t2.ID, 0.8))

	themed, err := st.ListThemedReviews(ctx, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, themed, 1)
	assert.Equal(t, "Login Issues", themed[0].ThemeName)
}

// --- Weekly reports ---

func TestSQLite_Reports_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	weekStart := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	report := &model.WeeklyReport{
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 7).Add(-time.Second),
		Content: model.ReportContent{
			Title:    "Weekly Review Pulse",
			Overview: "Mostly positive week with some login complaints.",
			Themes:   []model.ThemeSummary{{Name: "Login Issues", Summary: "Users report OTP delays."}},
		},
	}
	require.NoError(t, st.CreateReport(ctx, report))
	require.NotEmpty(t, report.ID)

	got, err := st.GetReportByWeek(ctx, weekStart)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Weekly Review Pulse", got.Content.Title)
	require.Len(t, got.Content.Themes, 1)
	assert.Nil(t, got.EmailSentAt)

	latest, err := st.GetLatestReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, report.ID, latest.ID)

	sentAt := time.Date(2026, 2, 9, 9, 15, 0, 0, time.UTC)
	require.NoError(t, st.MarkReportEmailed(ctx, report.ID, sentAt))

	got, err = st.GetReportByWeek(ctx, weekStart)
	require.NoError(t, err)
	require.NotNil(t, got.EmailSentAt)
	assert.True(t, got.EmailSentAt.Equal(sentAt))
}

func TestSQLite_Reports_UpsertSameWeek(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	weekStart := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	first := &model.WeeklyReport{
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 7),
		Content:   model.ReportContent{Title: "v1"},
	}
	require.NoError(t, st.CreateReport(ctx, first))

	second := &model.WeeklyReport{
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 7),
		Content:   model.ReportContent{Title: "v2"},
	}
	require.NoError(t, st.CreateReport(ctx, second))

	got, err := st.GetReportByWeek(ctx, weekStart)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content.Title)
}

func TestSQLite_GetLatestReport_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetLatestReport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

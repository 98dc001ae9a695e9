package store

import (
	"context"
	"time"

	"github.com/kanha1201/app-review-analyser/internal/model"
)

// ReviewFilter specifies criteria for listing reviews.
type ReviewFilter struct {
	Platform model.Platform `json:"platform,omitempty"`
	Start    time.Time      `json:"start,omitempty"`
	End      time.Time      `json:"end,omitempty"`
	OnlyNew  bool           `json:"only_new,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the review pipeline.
type Store interface {
	// Reviews
	CreateReview(ctx context.Context, review *model.Review) (inserted bool, err error)
	BulkCreateReviews(ctx context.Context, reviews []model.Review) (inserted int, err error)
	ListReviews(ctx context.Context, filter ReviewFilter) ([]model.Review, error)
	MarkReviewsProcessed(ctx context.Context, ids []string) error

	// Themes
	CreateTheme(ctx context.Context, name, description string) (*model.Theme, error)
	GetThemeByName(ctx context.Context, name string) (*model.Theme, error)
	ListThemes(ctx context.Context) ([]model.Theme, error)

	// Review-theme assignments
	AssignTheme(ctx context.Context, reviewID, themeID string, confidence float64) error
	ListThemedReviews(ctx context.Context, start, end time.Time) ([]model.ThemedReview, error)

	// Weekly reports
	CreateReport(ctx context.Context, report *model.WeeklyReport) error
	GetReportByWeek(ctx context.Context, weekStart time.Time) (*model.WeeklyReport, error)
	GetLatestReport(ctx context.Context) (*model.WeeklyReport, error)
	MarkReportEmailed(ctx context.Context, reportID string, sentAt time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

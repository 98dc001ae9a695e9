package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kanha1201/app-review-analyser/internal/db"
	"github.com/kanha1201/app-review-analyser/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_theme_by_name": `SELECT id, name, description, created_at FROM themes WHERE name = $1`,
	"insert_theme":      `INSERT INTO themes (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
	"assign_theme": `INSERT INTO review_themes (id, review_id, theme_id, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (review_id) DO UPDATE SET theme_id = EXCLUDED.theme_id, confidence = EXCLUDED.confidence`,
	"mark_report_emailed": `UPDATE weekly_reports SET email_sent_at = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reviews (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	platform     TEXT NOT NULL,
	rating       INTEGER,
	title        TEXT,
	review_text  TEXT NOT NULL,
	cleaned_text TEXT,
	review_date  TIMESTAMPTZ NOT NULL,
	app_version  TEXT,
	raw_data     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ,
	UNIQUE (platform, review_date)
);

CREATE TABLE IF NOT EXISTS themes (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL UNIQUE,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS review_themes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	review_id  TEXT NOT NULL UNIQUE REFERENCES reviews(id),
	theme_id   TEXT NOT NULL REFERENCES themes(id),
	confidence DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS weekly_reports (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	week_start    TIMESTAMPTZ NOT NULL UNIQUE,
	week_end      TIMESTAMPTZ NOT NULL,
	content       JSONB NOT NULL,
	email_sent_at TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reviews_review_date ON reviews(review_date);
CREATE INDEX IF NOT EXISTS idx_reviews_processed_at ON reviews(processed_at);
CREATE INDEX IF NOT EXISTS idx_review_themes_theme_id ON review_themes(theme_id);
CREATE INDEX IF NOT EXISTS idx_weekly_reports_week_start ON weekly_reports(week_start);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var reviewColumns = []string{
	"id", "platform", "rating", "title", "review_text", "cleaned_text",
	"review_date", "app_version", "raw_data", "created_at",
}

// CreateReview inserts one review, skipping it silently when the
// (platform, review_date) key is already present.
func (s *PostgresStore) CreateReview(ctx context.Context, review *model.Review) (bool, error) {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	rawJSON, err := json.Marshal(review.Raw)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal raw data")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO reviews
		 (id, platform, rating, title, review_text, cleaned_text, review_date, app_version, raw_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (platform, review_date) DO NOTHING`,
		review.ID, string(review.Platform), review.Rating, review.Title,
		review.ReviewText, review.CleanedText, review.ReviewDate.UTC(), review.AppVersion,
		rawJSON, review.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert review")
	}
	return tag.RowsAffected() > 0, nil
}

// BulkCreateReviews inserts reviews via COPY into a temp table, skipping
// rows whose (platform, review_date) key already exists.
func (s *PostgresStore) BulkCreateReviews(ctx context.Context, reviews []model.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(reviews))
	for _, r := range reviews {
		rawJSON, err := json.Marshal(r.Raw)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal raw data")
		}
		rows = append(rows, []any{
			uuid.New().String(), string(r.Platform), r.Rating, r.Title,
			r.ReviewText, r.CleanedText, r.ReviewDate.UTC(), r.AppVersion,
			rawJSON, now,
		})
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, db.InsertConfig{
		Table:        "reviews",
		Columns:      reviewColumns,
		ConflictKeys: []string{"platform", "review_date"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk create reviews")
	}
	return int(n), nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, filter ReviewFilter) ([]model.Review, error) {
	query := `SELECT id, platform, rating, title, review_text, cleaned_text,
	          review_date, app_version, raw_data, created_at, processed_at
	          FROM reviews WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Platform != "" {
		query += fmt.Sprintf(` AND platform = $%d`, argIdx)
		args = append(args, string(filter.Platform))
		argIdx++
	}
	if !filter.Start.IsZero() {
		query += fmt.Sprintf(` AND review_date >= $%d`, argIdx)
		args = append(args, filter.Start.UTC())
		argIdx++
	}
	if !filter.End.IsZero() {
		query += fmt.Sprintf(` AND review_date <= $%d`, argIdx)
		args = append(args, filter.End.UTC())
		argIdx++
	}
	if filter.OnlyNew {
		query += ` AND processed_at IS NULL`
	}
	query += ` ORDER BY review_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reviews")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanPgReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *r)
	}
	return reviews, eris.Wrap(rows.Err(), "postgres: list reviews iterate")
}

func (s *PostgresStore) MarkReviewsProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE reviews SET processed_at = $1 WHERE id = ANY($2)`,
		time.Now().UTC(), ids,
	)
	return eris.Wrap(err, "postgres: mark reviews processed")
}

func (s *PostgresStore) CreateTheme(ctx context.Context, name, description string) (*model.Theme, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO themes (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		id, name, description, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert theme %s", name)
	}

	return &model.Theme{ID: id, Name: name, Description: description, CreatedAt: now}, nil
}

func (s *PostgresStore) GetThemeByName(ctx context.Context, name string) (*model.Theme, error) {
	var t model.Theme
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM themes WHERE name = $1`,
		name,
	).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get theme %s", name)
	}
	return &t, nil
}

func (s *PostgresStore) ListThemes(ctx context.Context) ([]model.Theme, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at FROM themes ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list themes")
	}
	defer rows.Close()

	var themes []model.Theme
	for rows.Next() {
		var t model.Theme
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan theme")
		}
		themes = append(themes, t)
	}
	return themes, eris.Wrap(rows.Err(), "postgres: list themes iterate")
}

func (s *PostgresStore) AssignTheme(ctx context.Context, reviewID, themeID string, confidence float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_themes (id, review_id, theme_id, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (review_id) DO UPDATE SET theme_id = EXCLUDED.theme_id, confidence = EXCLUDED.confidence`,
		uuid.New().String(), reviewID, themeID, confidence, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: assign theme to review %s", reviewID)
}

func (s *PostgresStore) ListThemedReviews(ctx context.Context, start, end time.Time) ([]model.ThemedReview, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.platform, r.rating, r.title, r.review_text, r.cleaned_text,
		        r.review_date, r.app_version, r.raw_data, r.created_at, r.processed_at,
		        t.name
		 FROM reviews r
		 JOIN review_themes rt ON rt.review_id = r.id
		 JOIN themes t ON t.id = rt.theme_id
		 WHERE r.review_date >= $1 AND r.review_date <= $2
		 ORDER BY r.review_date DESC`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list themed reviews")
	}
	defer rows.Close()

	var out []model.ThemedReview
	for rows.Next() {
		var tr model.ThemedReview
		var rating *int
		var title, cleaned, version *string
		var rawJSON []byte
		var processedAt *time.Time

		err := rows.Scan(&tr.ID, &tr.Platform, &rating, &title, &tr.ReviewText,
			&cleaned, &tr.ReviewDate, &version, &rawJSON, &tr.CreatedAt,
			&processedAt, &tr.ThemeName)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan themed review")
		}
		fillPgReviewNullables(&tr.Review, rating, title, cleaned, version, rawJSON, processedAt)
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list themed reviews iterate")
}

func (s *PostgresStore) CreateReport(ctx context.Context, report *model.WeeklyReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	contentJSON, err := json.Marshal(report.Content)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report content")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO weekly_reports (id, week_start, week_end, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (week_start) DO UPDATE SET week_end = EXCLUDED.week_end, content = EXCLUDED.content`,
		report.ID, report.WeekStart.UTC(), report.WeekEnd.UTC(), contentJSON, report.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert weekly report")
}

func (s *PostgresStore) GetReportByWeek(ctx context.Context, weekStart time.Time) (*model.WeeklyReport, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, week_start, week_end, content, email_sent_at, created_at
		 FROM weekly_reports WHERE week_start = $1`,
		weekStart.UTC(),
	)
	return scanPgReport(row)
}

func (s *PostgresStore) GetLatestReport(ctx context.Context) (*model.WeeklyReport, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, week_start, week_end, content, email_sent_at, created_at
		 FROM weekly_reports ORDER BY week_start DESC LIMIT 1`,
	)
	return scanPgReport(row)
}

func (s *PostgresStore) MarkReportEmailed(ctx context.Context, reportID string, sentAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE weekly_reports SET email_sent_at = $1 WHERE id = $2`,
		sentAt.UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark report emailed %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

// helpers

func scanPgReview(rows pgx.Rows) (*model.Review, error) {
	var r model.Review
	var rating *int
	var title, cleaned, version *string
	var rawJSON []byte
	var processedAt *time.Time

	err := rows.Scan(&r.ID, &r.Platform, &rating, &title, &r.ReviewText,
		&cleaned, &r.ReviewDate, &version, &rawJSON, &r.CreatedAt, &processedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan review")
	}

	fillPgReviewNullables(&r, rating, title, cleaned, version, rawJSON, processedAt)
	return &r, nil
}

func fillPgReviewNullables(r *model.Review, rating *int, title, cleaned, version *string, rawJSON []byte, processedAt *time.Time) {
	if rating != nil {
		r.Rating = *rating
	}
	if title != nil {
		r.Title = *title
	}
	if cleaned != nil {
		r.CleanedText = *cleaned
	}
	if version != nil {
		r.AppVersion = *version
	}
	if len(rawJSON) > 0 {
		_ = json.Unmarshal(rawJSON, &r.Raw)
	}
	r.ProcessedAt = processedAt
}

func scanPgReport(row pgx.Row) (*model.WeeklyReport, error) {
	var wr model.WeeklyReport
	var contentJSON []byte
	var sentAt *time.Time

	err := row.Scan(&wr.ID, &wr.WeekStart, &wr.WeekEnd, &contentJSON, &sentAt, &wr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan report")
	}

	if err := json.Unmarshal(contentJSON, &wr.Content); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report content")
	}
	wr.EmailSentAt = sentAt
	return &wr, nil
}

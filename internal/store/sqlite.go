package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kanha1201/app-review-analyser/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reviews (
	id           TEXT PRIMARY KEY,
	platform     TEXT NOT NULL,
	rating       INTEGER,
	title        TEXT,
	review_text  TEXT NOT NULL,
	cleaned_text TEXT,
	review_date  DATETIME NOT NULL,
	app_version  TEXT,
	raw_data     TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	processed_at DATETIME,
	UNIQUE (platform, review_date)
);

CREATE TABLE IF NOT EXISTS themes (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS review_themes (
	id         TEXT PRIMARY KEY,
	review_id  TEXT NOT NULL UNIQUE REFERENCES reviews(id),
	theme_id   TEXT NOT NULL REFERENCES themes(id),
	confidence REAL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS weekly_reports (
	id            TEXT PRIMARY KEY,
	week_start    DATETIME NOT NULL UNIQUE,
	week_end      DATETIME NOT NULL,
	content       TEXT NOT NULL,
	email_sent_at DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reviews_review_date ON reviews(review_date);
CREATE INDEX IF NOT EXISTS idx_reviews_processed_at ON reviews(processed_at);
CREATE INDEX IF NOT EXISTS idx_review_themes_theme_id ON review_themes(theme_id);
CREATE INDEX IF NOT EXISTS idx_weekly_reports_week_start ON weekly_reports(week_start);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BulkCreateReviews inserts reviews, silently skipping duplicates on the
// (platform, review_date) key. Returns the number actually inserted.
// CreateReview inserts one review, skipping it silently when the
// (platform, review_date) key is already present.
func (s *SQLiteStore) CreateReview(ctx context.Context, review *model.Review) (bool, error) {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	rawJSON, err := json.Marshal(review.Raw)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal raw data")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reviews
		 (id, platform, rating, title, review_text, cleaned_text, review_date, app_version, raw_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID, string(review.Platform), review.Rating, review.Title,
		review.ReviewText, review.CleanedText, review.ReviewDate.UTC(), review.AppVersion,
		string(rawJSON), review.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert review")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) BulkCreateReviews(ctx context.Context, reviews []model.Review) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO reviews
		 (id, platform, rating, title, review_text, cleaned_text, review_date, app_version, raw_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert review")
	}
	defer stmt.Close()

	inserted := 0
	now := time.Now().UTC()
	for _, r := range reviews {
		rawJSON, err := json.Marshal(r.Raw)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: marshal raw data")
		}

		res, err := stmt.ExecContext(ctx,
			uuid.New().String(), string(r.Platform), r.Rating, r.Title,
			r.ReviewText, r.CleanedText, r.ReviewDate.UTC(), r.AppVersion,
			string(rawJSON), now,
		)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: insert review")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return inserted, eris.Wrap(err, "sqlite: commit reviews")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListReviews(ctx context.Context, filter ReviewFilter) ([]model.Review, error) {
	query := `SELECT id, platform, rating, title, review_text, cleaned_text,
	          review_date, app_version, raw_data, created_at, processed_at
	          FROM reviews WHERE 1=1`
	var args []any

	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, string(filter.Platform))
	}
	if !filter.Start.IsZero() {
		query += ` AND review_date >= ?`
		args = append(args, filter.Start.UTC())
	}
	if !filter.End.IsZero() {
		query += ` AND review_date <= ?`
		args = append(args, filter.End.UTC())
	}
	if filter.OnlyNew {
		query += ` AND processed_at IS NULL`
	}
	query += ` ORDER BY review_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reviews")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *r)
	}
	return reviews, eris.Wrap(rows.Err(), "sqlite: list reviews iterate")
}

func (s *SQLiteStore) MarkReviewsProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()
	query := `UPDATE reviews SET processed_at = ? WHERE id IN (?` +
		repeatPlaceholder(len(ids)-1) + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, now)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, query, args...)
	return eris.Wrap(err, "sqlite: mark reviews processed")
}

func (s *SQLiteStore) CreateTheme(ctx context.Context, name, description string) (*model.Theme, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO themes (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		id, name, description, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert theme %s", name)
	}

	return &model.Theme{ID: id, Name: name, Description: description, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetThemeByName(ctx context.Context, name string) (*model.Theme, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM themes WHERE name = ?`,
		name,
	)

	var t model.Theme
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get theme %s", name)
	}
	return &t, nil
}

func (s *SQLiteStore) ListThemes(ctx context.Context) ([]model.Theme, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM themes ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list themes")
	}
	defer rows.Close()

	var themes []model.Theme
	for rows.Next() {
		var t model.Theme
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan theme")
		}
		themes = append(themes, t)
	}
	return themes, eris.Wrap(rows.Err(), "sqlite: list themes iterate")
}

// AssignTheme links a review to a theme, replacing any previous assignment
// for that review.
func (s *SQLiteStore) AssignTheme(ctx context.Context, reviewID, themeID string, confidence float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_themes (id, review_id, theme_id, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (review_id) DO UPDATE SET theme_id = excluded.theme_id, confidence = excluded.confidence`,
		uuid.New().String(), reviewID, themeID, confidence, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: assign theme to review %s", reviewID)
}

func (s *SQLiteStore) ListThemedReviews(ctx context.Context, start, end time.Time) ([]model.ThemedReview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.platform, r.rating, r.title, r.review_text, r.cleaned_text,
		        r.review_date, r.app_version, r.raw_data, r.created_at, r.processed_at,
		        t.name
		 FROM reviews r
		 JOIN review_themes rt ON rt.review_id = r.id
		 JOIN themes t ON t.id = rt.theme_id
		 WHERE r.review_date >= ? AND r.review_date <= ?
		 ORDER BY r.review_date DESC`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list themed reviews")
	}
	defer rows.Close()

	var out []model.ThemedReview
	for rows.Next() {
		var tr model.ThemedReview
		var rating sql.NullInt64
		var title, cleaned, version, rawJSON sql.NullString
		var processedAt sql.NullTime

		err := rows.Scan(&tr.ID, &tr.Platform, &rating, &title, &tr.ReviewText,
			&cleaned, &tr.ReviewDate, &version, &rawJSON, &tr.CreatedAt,
			&processedAt, &tr.ThemeName)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan themed review")
		}
		fillReviewNullables(&tr.Review, rating, title, cleaned, version, rawJSON, processedAt)
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list themed reviews iterate")
}

func (s *SQLiteStore) CreateReport(ctx context.Context, report *model.WeeklyReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	contentJSON, err := json.Marshal(report.Content)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report content")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO weekly_reports (id, week_start, week_end, content, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (week_start) DO UPDATE SET week_end = excluded.week_end, content = excluded.content`,
		report.ID, report.WeekStart.UTC(), report.WeekEnd.UTC(), string(contentJSON), report.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert weekly report")
}

func (s *SQLiteStore) GetReportByWeek(ctx context.Context, weekStart time.Time) (*model.WeeklyReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, week_start, week_end, content, email_sent_at, created_at
		 FROM weekly_reports WHERE week_start = ?`,
		weekStart.UTC(),
	)
	return scanReport(row)
}

func (s *SQLiteStore) GetLatestReport(ctx context.Context) (*model.WeeklyReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, week_start, week_end, content, email_sent_at, created_at
		 FROM weekly_reports ORDER BY week_start DESC LIMIT 1`,
	)
	return scanReport(row)
}

func (s *SQLiteStore) MarkReportEmailed(ctx context.Context, reportID string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE weekly_reports SET email_sent_at = ? WHERE id = ?`,
		sentAt.UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark report emailed %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

// helpers

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReview(row scannable) (*model.Review, error) {
	var r model.Review
	var rating sql.NullInt64
	var title, cleaned, version, rawJSON sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Platform, &rating, &title, &r.ReviewText,
		&cleaned, &r.ReviewDate, &version, &rawJSON, &r.CreatedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("review not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan review")
	}

	fillReviewNullables(&r, rating, title, cleaned, version, rawJSON, processedAt)
	return &r, nil
}

func fillReviewNullables(r *model.Review, rating sql.NullInt64, title, cleaned, version, rawJSON sql.NullString, processedAt sql.NullTime) {
	if rating.Valid {
		r.Rating = int(rating.Int64)
	}
	if title.Valid {
		r.Title = title.String
	}
	if cleaned.Valid {
		r.CleanedText = cleaned.String
	}
	if version.Valid {
		r.AppVersion = version.String
	}
	if rawJSON.Valid && rawJSON.String != "" && rawJSON.String != "null" {
		_ = json.Unmarshal([]byte(rawJSON.String), &r.Raw)
	}
	if processedAt.Valid {
		t := processedAt.Time
		r.ProcessedAt = &t
	}
}

func scanReport(row scannable) (*model.WeeklyReport, error) {
	var wr model.WeeklyReport
	var contentJSON string
	var sentAt sql.NullTime

	err := row.Scan(&wr.ID, &wr.WeekStart, &wr.WeekEnd, &contentJSON, &sentAt, &wr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan report")
	}

	if err := json.Unmarshal([]byte(contentJSON), &wr.Content); err != nil {
		return nil, eris.Wrap(err, "unmarshal report content")
	}
	if sentAt.Valid {
		t := sentAt.Time
		wr.EmailSentAt = &t
	}
	return &wr, nil
}

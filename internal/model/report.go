package model

import (
	"strings"
	"time"
)

// ThemeSummary is one of the top-3 themes in a weekly pulse.
type ThemeSummary struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Quote is a short representative user quote, tagged with its theme.
type Quote struct {
	Text  string `json:"text"`
	Theme string `json:"theme"`
}

// Action is a suggested follow-up, tagged with its theme.
type Action struct {
	Text  string `json:"text"`
	Theme string `json:"theme"`
}

// ReportContent is the structured weekly pulse: a title, an overview and
// exactly three themes, quotes and actions (fewer when the window is empty).
type ReportContent struct {
	Title       string         `json:"title"`
	Overview    string         `json:"overview"`
	Themes      []ThemeSummary `json:"themes"`
	Quotes      []Quote        `json:"quotes"`
	Actions     []Action       `json:"actions"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// WordCount counts whitespace-delimited words across every text field that
// counts toward the 250-word digest budget.
func (c ReportContent) WordCount() int {
	parts := []string{c.Title, c.Overview}
	for _, t := range c.Themes {
		parts = append(parts, t.Summary)
	}
	for _, q := range c.Quotes {
		parts = append(parts, q.Text)
	}
	for _, a := range c.Actions {
		parts = append(parts, a.Text)
	}
	return len(strings.Fields(strings.Join(parts, " ")))
}

// WeeklyReport is a persisted pulse for one aggregation window. The only
// field updated after creation is EmailSentAt.
type WeeklyReport struct {
	ID          string        `json:"id"`
	WeekStart   time.Time     `json:"week_start_date"`
	WeekEnd     time.Time     `json:"week_end_date"`
	Content     ReportContent `json:"content"`
	EmailSentAt *time.Time    `json:"email_sent_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

package model

import "time"

// StepStatus tracks the outcome of one pipeline step.
type StepStatus string

const (
	StepStatusComplete StepStatus = "complete"
	StepStatusFailed   StepStatus = "failed"
	StepStatusSkipped  StepStatus = "skipped"
)

// StepResult records one step of a pipeline run.
type StepResult struct {
	Name     string         `json:"name"`
	Status   StepStatus     `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PipelineResult summarizes one full weekly run. Counts are reported even
// on partial failure.
type PipelineResult struct {
	WeekStart   time.Time    `json:"week_start"`
	WeekEnd     time.Time    `json:"week_end"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Steps       []StepResult `json:"steps"`
	Errors      []string     `json:"errors,omitempty"`
	Success     bool         `json:"success"`
}

// LastCompletedWeek returns the bounds of the most recently completed
// Monday-Sunday week relative to now, inclusive on both ends.
func LastCompletedWeek(now time.Time) (start, end time.Time) {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	lastMonday := now.AddDate(0, 0, -(daysSinceMonday + 7))
	start = time.Date(lastMonday.Year(), lastMonday.Month(), lastMonday.Day(), 0, 0, 0, 0, now.Location())
	end = start.AddDate(0, 0, 6).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return start, end
}

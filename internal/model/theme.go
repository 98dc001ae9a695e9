package model

import "time"

// DefaultThemeName is the catch-all theme assigned when extraction or
// classification cannot produce a confident result.
const DefaultThemeName = "General Feedback"

// DefaultThemeDescription describes the catch-all theme.
const DefaultThemeDescription = "General user feedback and app experience"

// Theme is a named, LLM-discovered category. Name is the join key
// (case-sensitive exact match); themes are never updated or deleted.
type Theme struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReviewTheme associates one review with exactly one theme. A
// reclassification overwrites ThemeID rather than adding a second row.
type ReviewTheme struct {
	ID         string  `json:"id"`
	ReviewID   string  `json:"review_id"`
	ThemeID    string  `json:"theme_id"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ThemedReview is a review joined with its assigned theme name, used by
// the weekly report aggregation.
type ThemedReview struct {
	Review
	ThemeName string `json:"theme_name"`
}

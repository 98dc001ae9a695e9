package model

import "time"

// Platform identifies the storefront a review came from.
type Platform string

const (
	PlatformAppStore   Platform = "app_store"
	PlatformGooglePlay Platform = "google_play"
)

// RawReview is the normalized output shape shared by every source fetcher,
// before sanitization. Rating 0 means the source did not supply one.
type RawReview struct {
	Platform   Platform       `json:"platform"`
	Rating     int            `json:"rating,omitempty"`
	Title      string         `json:"title,omitempty"`
	Text       string         `json:"text"`
	ReviewDate time.Time      `json:"review_date"`
	AppVersion string         `json:"app_version,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Review is a stored, sanitized review. The dedup key is
// (Platform, ReviewDate); rows are append-only except ProcessedAt,
// which classification sets exactly once.
type Review struct {
	ID          string         `json:"id"`
	Platform    Platform       `json:"platform"`
	Rating      int            `json:"rating,omitempty"`
	Title       string         `json:"title,omitempty"`
	ReviewText  string         `json:"review_text"`
	CleanedText string         `json:"cleaned_text"`
	ReviewDate  time.Time      `json:"review_date"`
	AppVersion  string         `json:"app_version,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

// DedupKey returns the identity used for duplicate detection. No content
// hash is involved: two reviews from the same platform posted at the same
// instant collide and the second is dropped.
func (r Review) DedupKey() string {
	return string(r.Platform) + "|" + r.ReviewDate.UTC().Format(time.RFC3339Nano)
}

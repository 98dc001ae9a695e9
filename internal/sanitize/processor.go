package sanitize

import (
	"time"

	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
)

const englishMinConfidence = 0.5

// Processor filters and cleans raw reviews before storage.
type Processor struct {
	minWords    int
	englishOnly bool
	stripEmoji  bool
	weeksMax    int
}

// NewProcessor creates a Processor from configuration.
func NewProcessor(cfg config.SanitizeConfig) *Processor {
	return &Processor{
		minWords:    cfg.MinWords,
		englishOnly: cfg.EnglishOnly,
		stripEmoji:  cfg.StripEmoji,
		weeksMax:    cfg.WeeksLookMax,
	}
}

// BatchReport tallies why records were kept or dropped.
type BatchReport struct {
	Total       int
	Kept        int
	OutOfWindow int
	TooShort    int
	NonEnglish  int
	EmptyClean  int
	PIIFound    int
}

// Window returns the acceptance window for incoming reviews relative to
// now: from weeksMax weeks back up to one week back. Reviews newer than a
// week are left for the next run so a week is only processed once complete.
func (p *Processor) Window(now time.Time) (start, end time.Time) {
	return now.AddDate(0, 0, -7*p.weeksMax), now.AddDate(0, 0, -7)
}

// Process filters raw reviews by date window, word count, and language,
// then cleans text and PII. Records failing any filter are dropped;
// the report explains the tally.
func (p *Processor) Process(raw []model.RawReview, now time.Time) ([]model.Review, BatchReport) {
	start, end := p.Window(now)
	report := BatchReport{Total: len(raw)}

	log := zap.L()
	log.Info("processing reviews",
		zap.Time("window_start", start),
		zap.Time("window_end", end),
		zap.Int("count", len(raw)),
	)

	out := make([]model.Review, 0, len(raw))
	for _, r := range raw {
		if r.ReviewDate.IsZero() {
			log.Warn("review without date, dropping", zap.String("platform", string(r.Platform)))
			report.OutOfWindow++
			continue
		}
		if r.ReviewDate.Before(start) || r.ReviewDate.After(end) {
			report.OutOfWindow++
			continue
		}

		// Word count must exceed the minimum, not just meet it.
		if CountWords(r.Text) <= p.minWords {
			report.TooShort++
			continue
		}

		if p.englishOnly && !IsEnglish(r.Text, englishMinConfidence) {
			report.NonEnglish++
			continue
		}

		cleaned := Clean(r.Text, p.stripEmoji)
		if cleaned == "" {
			log.Warn("review empty after cleaning, dropping")
			report.EmptyClean++
			continue
		}

		if ContainsPII(r.Text) {
			log.Info("pii removed from review", zap.Time("review_date", r.ReviewDate))
			report.PIIFound++
		}

		out = append(out, model.Review{
			Platform:    r.Platform,
			Rating:      r.Rating,
			Title:       Clean(r.Title, p.stripEmoji),
			ReviewText:  r.Text,
			CleanedText: cleaned,
			ReviewDate:  r.ReviewDate,
			AppVersion:  r.AppVersion,
			Raw:         r.Raw,
		})
		report.Kept++
	}

	log.Info("processing complete",
		zap.Int("kept", report.Kept),
		zap.Int("dropped", report.Total-report.Kept),
	)
	return out, report
}

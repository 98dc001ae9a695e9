// Package classifier discovers the dominant themes in a window of reviews
// and tags each review with the theme that fits it best.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/store"
	"github.com/kanha1201/app-review-analyser/pkg/llm"
)

const (
	extractionSampleChars = 200
	defaultConfidence     = 0.8
)

// Stats summarizes one classification run.
type Stats struct {
	Total        int            `json:"total"`
	Classified   int            `json:"classified"`
	Unclassified int            `json:"unclassified"`
	ThemeCounts  map[string]int `json:"theme_counts"`
}

// Classifier runs theme extraction and per-review classification.
type Classifier struct {
	store      store.Store
	llm        llm.Client
	cfg        config.ClassifierConfig
	maxTokens  int
	temp       float64
	batchDelay time.Duration
}

// New creates a Classifier.
func New(st store.Store, client llm.Client, cfg config.ClassifierConfig, llmCfg config.LLMConfig) *Classifier {
	return &Classifier{
		store:      st,
		llm:        client,
		cfg:        cfg,
		maxTokens:  llmCfg.MaxTokens,
		temp:       llmCfg.Temperature,
		batchDelay: time.Duration(cfg.BatchDelaySecs * float64(time.Second)),
	}
}

// Run classifies all unprocessed reviews in [start, end]. Reviews are
// marked processed at the end even when individual batches failed, so a
// rerun never reclassifies the same rows.
func (c *Classifier) Run(ctx context.Context, start, end time.Time) (*Stats, error) {
	reviews, err := c.store.ListReviews(ctx, store.ReviewFilter{
		Start:   start,
		End:     end,
		OnlyNew: true,
		Limit:   c.cfg.ExtractionLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "classifier: list reviews")
	}

	stats := &Stats{Total: len(reviews), ThemeCounts: map[string]int{}}
	if len(reviews) == 0 {
		zap.L().Info("no unprocessed reviews to classify")
		return stats, nil
	}

	themes, err := c.extractThemes(ctx, reviews)
	if err != nil {
		return nil, err
	}

	if err := c.classify(ctx, reviews, themes, stats); err != nil {
		return nil, err
	}

	ids := make([]string, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ID
	}
	if err := c.store.MarkReviewsProcessed(ctx, ids); err != nil {
		return nil, eris.Wrap(err, "classifier: mark processed")
	}

	zap.L().Info("classification complete",
		zap.Int("total", stats.Total),
		zap.Int("classified", stats.Classified),
		zap.Int("unclassified", stats.Unclassified),
	)
	return stats, nil
}

type extractedTheme struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// extractThemes asks the model for the dominant themes across a sample of
// reviews and persists any it has not seen before. Extraction failures
// degrade to the default theme rather than aborting the run.
func (c *Classifier) extractThemes(ctx context.Context, reviews []model.Review) ([]model.Theme, error) {
	sampleSize := c.cfg.SampleSize
	if sampleSize <= 0 {
		sampleSize = 100
	}
	if len(reviews) < sampleSize {
		sampleSize = len(reviews)
	}

	var samples []string
	for i, r := range reviews[:sampleSize] {
		text := r.CleanedText
		if text == "" {
			text = r.ReviewText
		}
		if len(text) > extractionSampleChars {
			text = text[:extractionSampleChars]
		}
		samples = append(samples, fmt.Sprintf("Review %d (Rating: %d/5): %s", i+1, r.Rating, text))
	}

	maxThemes := c.cfg.MaxThemes
	if maxThemes <= 0 {
		maxThemes = 5
	}
	prompt := fmt.Sprintf(extractThemesPrompt, maxThemes, strings.Join(samples, "\n\n"), maxThemes)

	resp, err := c.llm.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: &c.temp,
	})
	if err != nil {
		zap.L().Error("theme extraction failed, using default theme", zap.Error(err))
		t, derr := c.defaultTheme(ctx)
		if derr != nil {
			return nil, derr
		}
		return []model.Theme{*t}, nil
	}

	var parsed struct {
		Themes []extractedTheme `json:"themes"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &parsed); err != nil {
		zap.L().Error("theme extraction response unparseable, using default theme", zap.Error(err))
		t, derr := c.defaultTheme(ctx)
		if derr != nil {
			return nil, derr
		}
		return []model.Theme{*t}, nil
	}

	if len(parsed.Themes) > maxThemes {
		parsed.Themes = parsed.Themes[:maxThemes]
	}

	var themes []model.Theme
	for _, et := range parsed.Themes {
		name := strings.TrimSpace(et.Name)
		if name == "" {
			continue
		}
		t, err := c.getOrCreateTheme(ctx, name, et.Description)
		if err != nil {
			return nil, err
		}
		themes = append(themes, *t)
	}

	if len(themes) == 0 {
		t, err := c.defaultTheme(ctx)
		if err != nil {
			return nil, err
		}
		themes = []model.Theme{*t}
	}

	zap.L().Info("extracted themes", zap.Int("count", len(themes)))
	return themes, nil
}

type classification struct {
	ReviewID  string `json:"review_id"`
	ThemeName string `json:"theme_name"`
	Reason    string `json:"reason"`
}

// classify tags reviews batch by batch. A failed batch is logged and
// skipped; later batches still run.
func (c *Classifier) classify(ctx context.Context, reviews []model.Review, themes []model.Theme, stats *Stats) error {
	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	themeByName := make(map[string]model.Theme, len(themes))
	var themeLines []string
	for i, t := range themes {
		themeByName[t.Name] = t
		themeLines = append(themeLines, fmt.Sprintf("%d. %s - %s", i+1, t.Name, t.Description))
	}
	themesText := strings.Join(themeLines, "\n")

	reviewByID := make(map[string]model.Review, len(reviews))
	for _, r := range reviews {
		reviewByID[r.ID] = r
	}

	for i := 0; i < len(reviews); i += batchSize {
		batchNum := i/batchSize + 1
		if batchNum > 1 {
			if err := sleepCtx(ctx, c.batchDelay); err != nil {
				return err
			}
		}

		batch := reviews[i:min(i+batchSize, len(reviews))]
		zap.L().Info("classifying batch",
			zap.Int("batch", batchNum),
			zap.Int("size", len(batch)),
		)

		results, err := c.classifyBatch(ctx, batch, themesText)
		if err != nil {
			zap.L().Error("batch classification failed, skipping batch",
				zap.Int("batch", batchNum), zap.Error(err))
			stats.Unclassified += len(batch)
			continue
		}

		for _, cl := range results {
			review, ok := reviewByID[cl.ReviewID]
			if !ok {
				zap.L().Warn("classification for unknown review", zap.String("review_id", cl.ReviewID))
				stats.Unclassified++
				continue
			}

			themeName := strings.TrimSpace(cl.ThemeName)
			theme, ok := themeByName[themeName]
			if !ok {
				zap.L().Warn("model returned unknown theme, using default",
					zap.String("theme", themeName))
				dt, err := c.defaultTheme(ctx)
				if err != nil {
					return err
				}
				theme = *dt
				themeName = theme.Name
			}

			if err := c.store.AssignTheme(ctx, review.ID, theme.ID, defaultConfidence); err != nil {
				zap.L().Warn("failed to persist theme assignment",
					zap.String("review_id", review.ID), zap.Error(err))
				stats.Unclassified++
				continue
			}
			stats.Classified++
			stats.ThemeCounts[themeName]++
		}
	}
	return nil
}

func (c *Classifier) classifyBatch(ctx context.Context, batch []model.Review, themesText string) ([]classification, error) {
	var lines []string
	for _, r := range batch {
		text := r.CleanedText
		if text == "" {
			text = r.ReviewText
		}
		lines = append(lines, fmt.Sprintf("Review ID: %s\nRating: %d/5\nText: %s", r.ID, r.Rating, text))
	}
	prompt := fmt.Sprintf(classifyReviewsPrompt, themesText, strings.Join(lines, "\n\n---\n\n"))

	resp, err := c.llm.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: &c.temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "classifier: classify batch")
	}

	var parsed struct {
		Classifications []classification `json:"classifications"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &parsed); err != nil {
		return nil, eris.Wrap(err, "classifier: parse classifications")
	}
	return parsed.Classifications, nil
}

func (c *Classifier) getOrCreateTheme(ctx context.Context, name, description string) (*model.Theme, error) {
	existing, err := c.store.GetThemeByName(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "classifier: get theme %s", name)
	}
	if existing != nil {
		return existing, nil
	}
	created, err := c.store.CreateTheme(ctx, name, description)
	if err != nil {
		// A concurrent creator may have won the unique constraint on
		// name; resolve the conflict as a lookup.
		if existing, lookupErr := c.store.GetThemeByName(ctx, name); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, eris.Wrapf(err, "classifier: create theme %s", name)
	}
	return created, nil
}

func (c *Classifier) defaultTheme(ctx context.Context) (*model.Theme, error) {
	return c.getOrCreateTheme(ctx, model.DefaultThemeName, model.DefaultThemeDescription)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

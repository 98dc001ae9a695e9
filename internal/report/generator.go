// Package report turns a week of classified reviews into a short,
// executive-friendly pulse and an email draft for it.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
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
	chunkReviewChars = 500
	maxKeyPoints     = 5
	maxQuotes        = 5
)

// Generator builds and persists weekly pulse reports.
type Generator struct {
	store      store.Store
	llm        llm.Client
	cfg        config.ReportConfig
	maxTokens  int
	temp       float64
	themeDelay time.Duration
}

// New creates a Generator.
func New(st store.Store, client llm.Client, cfg config.ReportConfig, llmCfg config.LLMConfig) *Generator {
	return &Generator{
		store:      st,
		llm:        client,
		cfg:        cfg,
		maxTokens:  llmCfg.MaxTokens,
		temp:       llmCfg.Temperature,
		themeDelay: time.Duration(cfg.ThemeDelaySecs * float64(time.Second)),
	}
}

// themeSummary is the intermediate per-theme digest fed into the pulse.
type themeSummary struct {
	Theme           string   `json:"theme"`
	KeyPoints       []string `json:"key_points"`
	CandidateQuotes []string `json:"candidate_quotes"`
}

// Generate builds the pulse for [weekStart, weekEnd] and persists it,
// replacing any earlier report for the same week. An empty window still
// produces a report so downstream consumers always find one.
func (g *Generator) Generate(ctx context.Context, weekStart, weekEnd time.Time) (*model.WeeklyReport, error) {
	zap.L().Info("generating weekly report",
		zap.Time("week_start", weekStart),
		zap.Time("week_end", weekEnd),
	)

	themeReviews, err := g.topThemes(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	var content model.ReportContent
	if len(themeReviews) == 0 {
		zap.L().Warn("no classified reviews in window, writing placeholder report")
		content = model.ReportContent{
			Title:    "No Reviews This Week",
			Overview: "No reviews were found for the specified week.",
			Themes:   []model.ThemeSummary{},
			Quotes:   []model.Quote{},
			Actions:  []model.Action{},
		}
	} else {
		summaries, err := g.summarizeThemes(ctx, themeReviews)
		if err != nil {
			return nil, err
		}

		pulse, err := g.generatePulse(ctx, weekStart, weekEnd, summaries)
		if err != nil {
			return nil, err
		}
		content = g.compress(ctx, *pulse)
	}
	content.GeneratedAt = time.Now().UTC()

	rpt := &model.WeeklyReport{
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Content:   content,
	}
	if err := g.store.CreateReport(ctx, rpt); err != nil {
		return nil, eris.Wrap(err, "report: save report")
	}

	zap.L().Info("weekly report saved",
		zap.String("report_id", rpt.ID),
		zap.Int("words", content.WordCount()),
	)
	return rpt, nil
}

// namedReviews keeps a theme together with its reviews, ordered by count
// so the biggest themes come first.
type namedReviews struct {
	name    string
	reviews []model.Review
}

// topThemes groups the week's classified reviews by theme and keeps the
// TopThemes largest groups. Ties break alphabetically so reruns produce
// the same selection.
func (g *Generator) topThemes(ctx context.Context, weekStart, weekEnd time.Time) ([]namedReviews, error) {
	themed, err := g.store.ListThemedReviews(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, eris.Wrap(err, "report: list themed reviews")
	}

	byTheme := map[string][]model.Review{}
	for _, tr := range themed {
		byTheme[tr.ThemeName] = append(byTheme[tr.ThemeName], tr.Review)
	}

	groups := make([]namedReviews, 0, len(byTheme))
	for name, reviews := range byTheme {
		groups = append(groups, namedReviews{name: name, reviews: reviews})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].reviews) != len(groups[j].reviews) {
			return len(groups[i].reviews) > len(groups[j].reviews)
		}
		return groups[i].name < groups[j].name
	})

	topN := g.cfg.TopThemes
	if topN <= 0 {
		topN = 3
	}
	if len(groups) > topN {
		groups = groups[:topN]
	}

	zap.L().Info("selected top themes",
		zap.Int("reviews", len(themed)),
		zap.Int("themes", len(groups)),
	)
	return groups, nil
}

func (g *Generator) summarizeThemes(ctx context.Context, groups []namedReviews) ([]themeSummary, error) {
	summaries := make([]themeSummary, 0, len(groups))
	for i, grp := range groups {
		if i > 0 {
			if err := sleepCtx(ctx, g.themeDelay); err != nil {
				return nil, err
			}
		}
		zap.L().Info("summarizing theme",
			zap.String("theme", grp.name),
			zap.Int("reviews", len(grp.reviews)),
		)
		summaries = append(summaries, g.summarizeTheme(ctx, grp.name, grp.reviews))
	}
	return summaries, nil
}

// summarizeTheme digests a theme's reviews chunk by chunk, then dedupes
// the accumulated points and quotes keeping first occurrences.
func (g *Generator) summarizeTheme(ctx context.Context, theme string, reviews []model.Review) themeSummary {
	chunkSize := g.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 20
	}

	var points, quotes []string
	for i := 0; i < len(reviews); i += chunkSize {
		chunk := reviews[i:min(i+chunkSize, len(reviews))]
		cs := g.summarizeChunk(ctx, theme, chunk)
		points = append(points, cs.KeyPoints...)
		quotes = append(quotes, cs.CandidateQuotes...)
	}

	return themeSummary{
		Theme:           theme,
		KeyPoints:       dedupe(points, maxKeyPoints),
		CandidateQuotes: dedupe(quotes, maxQuotes),
	}
}

// summarizeChunk asks the model for key points and quote candidates. A
// failed call degrades to a single counted key point so the theme still
// shows up in the pulse.
func (g *Generator) summarizeChunk(ctx context.Context, theme string, reviews []model.Review) themeSummary {
	var texts []string
	for i, r := range reviews {
		text := r.CleanedText
		if text == "" {
			text = r.ReviewText
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if len(text) > chunkReviewChars {
			text = text[:chunkReviewChars]
		}
		texts = append(texts, fmt.Sprintf("Review %d: %s", i+1, text))
	}
	if len(texts) == 0 {
		return themeSummary{Theme: theme}
	}

	prompt := fmt.Sprintf(summarizeChunkPrompt, theme, strings.Join(texts, "\n\n---\n\n"), theme)
	resp, err := g.llm.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: &g.temp,
	})
	if err != nil {
		zap.L().Error("theme chunk summarization failed",
			zap.String("theme", theme), zap.Error(err))
		return fallbackChunkSummary(theme, len(reviews))
	}

	var parsed themeSummary
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &parsed); err != nil {
		zap.L().Error("theme chunk summary unparseable",
			zap.String("theme", theme), zap.Error(err))
		return fallbackChunkSummary(theme, len(reviews))
	}
	parsed.Theme = theme
	return parsed
}

func fallbackChunkSummary(theme string, count int) themeSummary {
	return themeSummary{
		Theme:     theme,
		KeyPoints: []string{fmt.Sprintf("%d reviews mention %s", count, strings.ToLower(theme))},
	}
}

// generatePulse condenses the theme summaries into the final structured
// note. Unlike summarization, a failure here is fatal: there is nothing
// sensible to publish without it.
func (g *Generator) generatePulse(ctx context.Context, weekStart, weekEnd time.Time, summaries []themeSummary) (*model.ReportContent, error) {
	summariesJSON, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal theme summaries")
	}

	prompt := fmt.Sprintf(weeklyPulsePrompt,
		weekStart.Format("January 02, 2006"),
		weekEnd.Format("January 02, 2006"),
		string(summariesJSON),
		g.maxWords(),
	)
	resp, err := g.llm.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: &g.temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: generate weekly pulse")
	}

	var content model.ReportContent
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &content); err != nil {
		return nil, eris.Wrap(err, "report: parse weekly pulse")
	}

	if len(content.Themes) > 3 {
		content.Themes = content.Themes[:3]
	}
	if len(content.Quotes) > 3 {
		content.Quotes = content.Quotes[:3]
	}
	if len(content.Actions) > 3 {
		content.Actions = content.Actions[:3]
	}
	return &content, nil
}

// compress rewrites the pulse under the word budget when it runs over.
// A failed rewrite keeps the oversized pulse rather than losing it.
func (g *Generator) compress(ctx context.Context, content model.ReportContent) model.ReportContent {
	words := content.WordCount()
	if words <= g.maxWords() {
		return content
	}
	zap.L().Info("report over word budget, compressing",
		zap.Int("words", words),
		zap.Int("budget", g.maxWords()),
	)

	contentJSON, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		zap.L().Error("failed to marshal report for compression", zap.Error(err))
		return content
	}

	prompt := fmt.Sprintf(compressReportPrompt, g.maxWords(), string(contentJSON))
	resp, err := g.llm.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: &g.temp,
	})
	if err != nil {
		zap.L().Error("report compression failed, keeping original", zap.Error(err))
		return content
	}

	var compressed model.ReportContent
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &compressed); err != nil {
		zap.L().Error("compressed report unparseable, keeping original", zap.Error(err))
		return content
	}
	return compressed
}

func (g *Generator) maxWords() int {
	if g.cfg.MaxWords <= 0 {
		return 250
	}
	return g.cfg.MaxWords
}

// dedupe drops repeated entries keeping first occurrences, capped at n.
func dedupe(items []string, n int) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
		if len(out) == n {
			break
		}
	}
	return out
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

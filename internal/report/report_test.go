package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/store"
	"github.com/kanha1201/app-review-analyser/pkg/llm"
)

type fakeLLM struct {
	prompts  []string
	generate func(req llm.GenerateRequest) (*llm.GenerateResponse, error)
}

func (f *fakeLLM) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.prompts = append(f.prompts, req.Prompt)
	return f.generate(req)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testReportConfig() config.ReportConfig {
	return config.ReportConfig{
		ProductName:    "groww",
		TopThemes:      3,
		ChunkSize:      20,
		ThemeDelaySecs: 0,
		MaxWords:       250,
	}
}

// seedThemedReviews creates count reviews assigned to the named theme,
// dated inside [date, date+count minutes).
func seedThemedReviews(t *testing.T, st store.Store, theme string, count int, date time.Time) {
	t.Helper()
	ctx := context.Background()

	th, err := st.GetThemeByName(ctx, theme)
	require.NoError(t, err)
	if th == nil {
		th, err = st.CreateTheme(ctx, theme, theme+" related feedback")
		require.NoError(t, err)
	}

	var reviews []model.Review
	for i := 0; i < count; i++ {
		reviews = append(reviews, model.Review{
			Platform:    model.PlatformGooglePlay,
			Rating:      2,
			ReviewText:  fmt.Sprintf("%s complaint number %d", theme, i+1),
			CleanedText: fmt.Sprintf("%s complaint number %d", theme, i+1),
			ReviewDate:  date.Add(time.Duration(i) * time.Minute),
		})
	}
	_, err = st.BulkCreateReviews(ctx, reviews)
	require.NoError(t, err)

	stored, err := st.ListReviews(ctx, store.ReviewFilter{Start: date, End: date.Add(time.Duration(count) * time.Minute)})
	require.NoError(t, err)
	for _, r := range stored {
		if strings.HasPrefix(r.ReviewText, theme) {
			require.NoError(t, st.AssignTheme(ctx, r.ID, th.ID, 0.8))
		}
	}
}

const pulseJSON = `{
	"title": "Crashes Dominate the Week",
	"overview": "Users report frequent crashes and slow withdrawals.",
	"themes": [
		{"name": "Crashes", "summary": "Crashes spiked after the latest release."},
		{"name": "Withdrawals", "summary": "Withdrawal delays frustrate users."}
	],
	"quotes": [
		{"text": "App crashes every time I open a chart", "theme": "Crashes"}
	],
	"actions": [
		{"text": "Triage crash reports from the latest build", "theme": "Crashes"}
	]
}`

// answerPulse routes the three prompt kinds to canned responses.
func answerPulse(pulse string) func(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return func(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		switch {
		case strings.Contains(req.Prompt, "summarizing user reviews"):
			return &llm.GenerateResponse{Text: `{
				"theme": "Crashes",
				"key_points": ["crashes after update", "charts affected"],
				"candidate_quotes": ["crashes every time"]
			}`}, nil
		case strings.Contains(req.Prompt, "weekly product pulse"):
			return &llm.GenerateResponse{Text: pulse}, nil
		default:
			return &llm.GenerateResponse{Text: pulse}, nil
		}
	}
}

func TestGenerate_EmptyWindowWritesPlaceholder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	weekStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)

	called := false
	g := New(st, &fakeLLM{generate: func(llm.GenerateRequest) (*llm.GenerateResponse, error) {
		called = true
		return nil, nil
	}}, testReportConfig(), config.LLMConfig{MaxTokens: 1024})

	rpt, err := g.Generate(ctx, weekStart, weekEnd)
	require.NoError(t, err)
	assert.False(t, called, "empty window should not hit the model")
	assert.Equal(t, "No Reviews This Week", rpt.Content.Title)
	assert.Empty(t, rpt.Content.Themes)

	saved, err := st.GetReportByWeek(ctx, weekStart)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "No Reviews This Week", saved.Content.Title)
}

func TestGenerate_HappyPath(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	weekStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)

	seedThemedReviews(t, st, "Crashes", 3, weekStart.Add(time.Hour))
	seedThemedReviews(t, st, "Withdrawals", 2, weekStart.Add(2*time.Hour))

	fake := &fakeLLM{generate: answerPulse(pulseJSON)}
	g := New(st, fake, testReportConfig(), config.LLMConfig{MaxTokens: 1024, Temperature: 0.3})

	rpt, err := g.Generate(ctx, weekStart, weekEnd)
	require.NoError(t, err)

	assert.Equal(t, "Crashes Dominate the Week", rpt.Content.Title)
	assert.Len(t, rpt.Content.Themes, 2)
	assert.NotEmpty(t, rpt.ID)
	assert.False(t, rpt.Content.GeneratedAt.IsZero())

	// One summarization call per theme plus the pulse call.
	require.Len(t, fake.prompts, 3)
	// The biggest theme is summarized first.
	assert.Contains(t, fake.prompts[0], "Theme: Crashes")
	assert.Contains(t, fake.prompts[1], "Theme: Withdrawals")

	saved, err := st.GetReportByWeek(ctx, weekStart)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, rpt.Content.Title, saved.Content.Title)
}

func TestGenerate_TruncatesPulseToThree(t *testing.T) {
	st := newTestStore(t)
	weekStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	seedThemedReviews(t, st, "Crashes", 2, weekStart.Add(time.Hour))

	var themes, quotes, actions []string
	for i := 1; i <= 5; i++ {
		themes = append(themes, fmt.Sprintf(`{"name": "Theme %d", "summary": "s"}`, i))
		quotes = append(quotes, fmt.Sprintf(`{"text": "quote %d", "theme": "Theme %d"}`, i, i))
		actions = append(actions, fmt.Sprintf(`{"text": "action %d", "theme": "Theme %d"}`, i, i))
	}
	oversized := fmt.Sprintf(`{"title": "t", "overview": "o", "themes": [%s], "quotes": [%s], "actions": [%s]}`,
		strings.Join(themes, ","), strings.Join(quotes, ","), strings.Join(actions, ","))

	g := New(st, &fakeLLM{generate: answerPulse(oversized)}, testReportConfig(), config.LLMConfig{MaxTokens: 1024})

	rpt, err := g.Generate(context.Background(), weekStart, weekStart.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, rpt.Content.Themes, 3)
	assert.Len(t, rpt.Content.Quotes, 3)
	assert.Len(t, rpt.Content.Actions, 3)
}

func TestGenerate_KeepsTopThemesOnly(t *testing.T) {
	st := newTestStore(t)
	weekStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	seedThemedReviews(t, st, "Crashes", 4, weekStart.Add(time.Hour))
	seedThemedReviews(t, st, "Withdrawals", 3, weekStart.Add(2*time.Hour))
	seedThemedReviews(t, st, "KYC", 2, weekStart.Add(3*time.Hour))
	seedThemedReviews(t, st, "Dark Mode", 1, weekStart.Add(4*time.Hour))

	fake := &fakeLLM{generate: answerPulse(pulseJSON)}
	g := New(st, fake, testReportConfig(), config.LLMConfig{MaxTokens: 1024})

	_, err := g.Generate(context.Background(), weekStart, weekStart.AddDate(0, 0, 7))
	require.NoError(t, err)

	joined := strings.Join(fake.prompts, "\n")
	assert.Contains(t, joined, "Theme: Crashes")
	assert.Contains(t, joined, "Theme: KYC")
	assert.NotContains(t, joined, "Theme: Dark Mode")
}

func TestGenerate_PulseFailureIsFatal(t *testing.T) {
	st := newTestStore(t)
	weekStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	seedThemedReviews(t, st, "Crashes", 2, weekStart.Add(time.Hour))

	g := New(st, &fakeLLM{generate: func(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		if strings.Contains(req.Prompt, "summarizing user reviews") {
			return nil, fmt.Errorf("model unavailable")
		}
		return nil, fmt.Errorf("model unavailable")
	}}, testReportConfig(), config.LLMConfig{MaxTokens: 1024})

	_, err := g.Generate(context.Background(), weekStart, weekStart.AddDate(0, 0, 7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate weekly pulse")

	// Nothing persisted on failure.
	saved, serr := st.GetReportByWeek(context.Background(), weekStart)
	require.NoError(t, serr)
	assert.Nil(t, saved)
}

func TestGenerate_CompressionFailureKeepsOriginal(t *testing.T) {
	st := newTestStore(t)
	weekStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	seedThemedReviews(t, st, "Crashes", 2, weekStart.Add(time.Hour))

	longOverview := strings.Repeat("word ", 300)
	oversized := fmt.Sprintf(`{"title": "t", "overview": %q, "themes": [], "quotes": [], "actions": []}`, longOverview)

	compressCalled := false
	g := New(st, &fakeLLM{generate: func(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		switch {
		case strings.Contains(req.Prompt, "summarizing user reviews"):
			return &llm.GenerateResponse{Text: `{"key_points": ["p"], "candidate_quotes": []}`}, nil
		case strings.Contains(req.Prompt, "weekly product pulse"):
			return &llm.GenerateResponse{Text: oversized}, nil
		default:
			compressCalled = true
			return nil, fmt.Errorf("model unavailable")
		}
	}}, testReportConfig(), config.LLMConfig{MaxTokens: 1024})

	rpt, err := g.Generate(context.Background(), weekStart, weekStart.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.True(t, compressCalled)
	assert.Equal(t, "t", rpt.Content.Title)
	assert.Greater(t, rpt.Content.WordCount(), 250)
}

func TestSummarizeTheme_DedupesAcrossChunks(t *testing.T) {
	cfg := testReportConfig()
	cfg.ChunkSize = 2

	g := New(nil, &fakeLLM{generate: func(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Text: `{
			"key_points": ["slow loading", "slow loading", "timeouts"],
			"candidate_quotes": ["takes forever to load"]
		}`}, nil
	}}, cfg, config.LLMConfig{MaxTokens: 1024})

	reviews := make([]model.Review, 4)
	for i := range reviews {
		reviews[i] = model.Review{ReviewText: fmt.Sprintf("slow %d", i)}
	}

	sum := g.summarizeTheme(context.Background(), "Performance", reviews)
	assert.Equal(t, []string{"slow loading", "timeouts"}, sum.KeyPoints)
	assert.Equal(t, []string{"takes forever to load"}, sum.CandidateQuotes)
}

func TestDraft_SubjectAndScrubbedBody(t *testing.T) {
	rpt := &model.WeeklyReport{
		WeekStart: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		WeekEnd:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Content:   model.ReportContent{Title: "Pulse", Overview: "All quiet."},
	}

	g := New(nil, &fakeLLM{generate: func(llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Text: "Hi Team,\n\nReach me at john@example.com for details.\n\nBest"}, nil
	}}, testReportConfig(), config.LLMConfig{MaxTokens: 1024})

	draft := g.Draft(context.Background(), rpt)
	assert.Equal(t, "Weekly Product Pulse – groww (Aug 17–Aug 24, 2026)", draft.Subject)
	assert.NotContains(t, draft.Body, "john@example.com")
	assert.Contains(t, draft.Body, "[EMAIL_REMOVED]")
}

func TestDraft_FallbackOnModelFailure(t *testing.T) {
	rpt := &model.WeeklyReport{
		WeekStart: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		WeekEnd:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Content: model.ReportContent{
			Title:    "Crashes Dominate",
			Overview: "Rough week.",
			Themes:   []model.ThemeSummary{{Name: "Crashes", Summary: "Spiked after release."}},
			Quotes:   []model.Quote{{Text: "crashes constantly", Theme: "Crashes"}},
			Actions:  []model.Action{{Text: "Fix the crash", Theme: "Crashes"}},
		},
	}

	g := New(nil, &fakeLLM{generate: func(llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return nil, fmt.Errorf("model unavailable")
	}}, testReportConfig(), config.LLMConfig{MaxTokens: 1024})

	draft := g.Draft(context.Background(), rpt)
	assert.Contains(t, draft.Body, "Hi Team,")
	assert.Contains(t, draft.Body, "Crashes Dominate")
	assert.Contains(t, draft.Body, "- Crashes: Spiked after release.")
	assert.Contains(t, draft.Body, `- [Crashes] "crashes constantly"`)
	assert.Contains(t, draft.Body, "Product Insights Team")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "plain text", stripFences("plain text"))
	assert.Equal(t, "body", stripFences("```\nbody\n```"))
	assert.Equal(t, "body", stripFences("```text\nbody\n```"))
}

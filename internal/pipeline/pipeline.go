// Package pipeline orchestrates the weekly run: fetch reviews from both
// stores, sanitize and persist them, classify themes, generate the pulse
// and send it out.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/classifier"
	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/emailer"
	"github.com/kanha1201/app-review-analyser/internal/fetcher"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/report"
	"github.com/kanha1201/app-review-analyser/internal/sanitize"
	"github.com/kanha1201/app-review-analyser/internal/store"
	"github.com/kanha1201/app-review-analyser/pkg/llm"
)

// Pipeline wires the weekly stages together.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	sources    []fetcher.Source
	processor  *sanitize.Processor
	classifier *classifier.Classifier
	generator  *report.Generator
	emailer    *emailer.Emailer

	now func() time.Time
}

// New creates a Pipeline with all stages wired from config.
func New(cfg *config.Config, st store.Store, client llm.Client) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		store: st,
		sources: []fetcher.Source{
			fetcher.NewAppStore(cfg.AppStore),
			fetcher.NewGooglePlay(cfg.GooglePlay),
		},
		processor:  sanitize.NewProcessor(cfg.Sanitize),
		classifier: classifier.New(st, client, cfg.Classifier, cfg.LLM),
		generator:  report.New(st, client, cfg.Report, cfg.LLM),
		emailer:    emailer.New(cfg.Email, st),
		now:        time.Now,
	}
}

// Run executes the full pipeline for the most recently completed week.
func (p *Pipeline) Run(ctx context.Context) (*model.PipelineResult, error) {
	weekStart, weekEnd := model.LastCompletedWeek(p.now().UTC())
	return p.RunWeek(ctx, weekStart, weekEnd)
}

// RunWeek executes the pipeline for an explicit week. A failed source or
// a failed email is recorded and the run continues; classification and
// report generation failures abort the run.
func (p *Pipeline) RunWeek(ctx context.Context, weekStart, weekEnd time.Time) (*model.PipelineResult, error) {
	now := p.now().UTC()
	log := zap.L().With(
		zap.Time("week_start", weekStart),
		zap.Time("week_end", weekEnd),
	)
	log.Info("pipeline: starting weekly run")

	result := &model.PipelineResult{
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		StartedAt: now,
	}

	trackStep := func(name string, fn func() (map[string]any, error)) error {
		start := p.now()
		meta, err := fn()
		step := model.StepResult{
			Name:     name,
			Status:   model.StepStatusComplete,
			Duration: time.Since(start).Milliseconds(),
			Metadata: meta,
		}
		if err != nil {
			step.Status = model.StepStatusFailed
			step.Error = err.Error()
			log.Error("pipeline: step failed", zap.String("step", name), zap.Error(err))
		} else {
			log.Info("pipeline: step complete",
				zap.String("step", name),
				zap.Int64("duration_ms", step.Duration),
			)
		}

		result.Steps = append(result.Steps, step)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		}
		return err
	}

	// Fetch one platform at a time. One platform failing still leaves a
	// usable run for the other.
	windowStart, windowEnd := p.processor.Window(now)
	var raw []model.RawReview
	for _, src := range p.sources {
		//nolint:errcheck // source failures are recorded, not fatal
		trackStep("fetch_"+string(src.Platform()), func() (map[string]any, error) {
			fetched, err := src.Fetch(ctx, windowStart)
			if err != nil {
				return nil, err
			}
			raw = append(raw, fetched...)
			return map[string]any{"fetched": len(fetched)}, nil
		})
	}

	if err := trackStep("sanitize", func() (map[string]any, error) {
		reviews, batch := p.processor.Process(raw, now)
		inserted, err := p.store.BulkCreateReviews(ctx, reviews)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"raw":         batch.Total,
			"kept":        batch.Kept,
			"inserted":    inserted,
			"too_short":   batch.TooShort,
			"non_english": batch.NonEnglish,
		}, nil
	}); err != nil {
		result.CompletedAt = p.now().UTC()
		return result, eris.Wrap(err, "pipeline: sanitize")
	}

	if err := trackStep("classify", func() (map[string]any, error) {
		stats, err := p.classifier.Run(ctx, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"total":        stats.Total,
			"classified":   stats.Classified,
			"unclassified": stats.Unclassified,
		}, nil
	}); err != nil {
		result.CompletedAt = p.now().UTC()
		return result, eris.Wrap(err, "pipeline: classify")
	}

	var rpt *model.WeeklyReport
	if err := trackStep("report", func() (map[string]any, error) {
		var err error
		rpt, err = p.generator.Generate(ctx, weekStart, weekEnd)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"report_id": rpt.ID,
			"words":     rpt.Content.WordCount(),
		}, nil
	}); err != nil {
		result.CompletedAt = p.now().UTC()
		return result, eris.Wrap(err, "pipeline: report")
	}

	var emailSkipped bool
	//nolint:errcheck // email is best effort
	trackStep("email", func() (map[string]any, error) {
		draft := p.generator.Draft(ctx, rpt)
		res, err := p.emailer.SendReport(ctx, rpt.ID, draft)
		if err != nil {
			return nil, err
		}
		meta := map[string]any{"sent": res.Sent}
		if res.Skipped {
			emailSkipped = true
			meta["skipped"] = res.Reason
		}
		return meta, nil
	})
	if emailSkipped {
		result.Steps[len(result.Steps)-1].Status = model.StepStatusSkipped
	}

	result.CompletedAt = p.now().UTC()
	result.Success = true
	for _, step := range result.Steps {
		if step.Status == model.StepStatusFailed {
			result.Success = false
		}
	}

	log.Info("pipeline: weekly run finished",
		zap.Bool("success", result.Success),
		zap.Int("steps", len(result.Steps)),
		zap.Strings("errors", result.Errors),
	)
	return result, nil
}

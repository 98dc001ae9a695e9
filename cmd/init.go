package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kanha1201/app-review-analyser/internal/pipeline"
	"github.com/kanha1201/app-review-analyser/internal/store"
	"github.com/kanha1201/app-review-analyser/pkg/llm"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "reviewpulse.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initLLM() (llm.Client, error) {
	if cfg.LLM.Key == "" {
		return nil, eris.New("llm api key is required (REVIEWPULSE_LLM_KEY)")
	}

	switch cfg.LLM.Backend {
	case "http":
		var opts []llm.Option
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, llm.WithBaseURL(cfg.LLM.BaseURL))
		}
		return llm.NewHTTPClient(cfg.LLM.Key, cfg.LLM.Model, opts...), nil
	case "", "sdk":
		return llm.NewSDKClient(cfg.LLM.Key, cfg.LLM.Model), nil
	default:
		return nil, eris.Errorf("unsupported llm backend: %s", cfg.LLM.Backend)
	}
}

// pipelineEnv bundles the pipeline with what must be torn down after it.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

// initPipeline sets up the store and model client and wires the full
// weekly pipeline.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client, err := initLLM()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, client),
	}, nil
}

// parseWeek turns a YYYY-MM-DD week start into inclusive week bounds.
func parseWeek(weekStart string) (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", weekStart)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrapf(err, "parse week %q", weekStart)
	}
	end = start.AddDate(0, 0, 6).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return start, end, nil
}

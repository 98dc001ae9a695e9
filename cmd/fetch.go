package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/fetcher"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/sanitize"
)

var fetchPlatform string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch, sanitize and store reviews from the app stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var sources []fetcher.Source
		switch fetchPlatform {
		case "app_store":
			sources = append(sources, fetcher.NewAppStore(cfg.AppStore))
		case "google_play":
			sources = append(sources, fetcher.NewGooglePlay(cfg.GooglePlay))
		case "all":
			sources = append(sources,
				fetcher.NewAppStore(cfg.AppStore),
				fetcher.NewGooglePlay(cfg.GooglePlay),
			)
		default:
			return eris.Errorf("unknown platform: %s (want app_store, google_play or all)", fetchPlatform)
		}

		processor := sanitize.NewProcessor(cfg.Sanitize)
		now := time.Now().UTC()
		cutoff, _ := processor.Window(now)

		var raw []model.RawReview
		for _, src := range sources {
			fetched, err := src.Fetch(ctx, cutoff)
			if err != nil {
				zap.L().Error("fetch failed",
					zap.String("platform", string(src.Platform())),
					zap.Error(err),
				)
				continue
			}
			zap.L().Info("fetched reviews",
				zap.String("platform", string(src.Platform())),
				zap.Int("count", len(fetched)),
			)
			raw = append(raw, fetched...)
		}

		reviews, batch := processor.Process(raw, now)
		inserted, err := st.BulkCreateReviews(ctx, reviews)
		if err != nil {
			return eris.Wrap(err, "store reviews")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"fetched":       batch.Total,
			"kept":          batch.Kept,
			"inserted":      inserted,
			"too_short":     batch.TooShort,
			"non_english":   batch.NonEnglish,
			"out_of_window": batch.OutOfWindow,
		})
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchPlatform, "platform", "all", "platform to fetch (app_store, google_play, all)")
	rootCmd.AddCommand(fetchCmd)
}

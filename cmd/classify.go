package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kanha1201/app-review-analyser/internal/classifier"
	"github.com/kanha1201/app-review-analyser/internal/sanitize"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify unprocessed reviews into themes",
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

		client, err := initLLM()
		if err != nil {
			return err
		}

		start, end := sanitize.NewProcessor(cfg.Sanitize).Window(time.Now().UTC())
		c := classifier.New(st, client, cfg.Classifier, cfg.LLM)
		stats, err := c.Run(ctx, start, end)
		if err != nil {
			return eris.Wrap(err, "classify")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

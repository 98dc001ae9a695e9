package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/report"
)

var reportWeek string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the weekly pulse report from classified reviews",
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

		var weekStart, weekEnd time.Time
		if reportWeek != "" {
			weekStart, weekEnd, err = parseWeek(reportWeek)
			if err != nil {
				return err
			}
		} else {
			weekStart, weekEnd = model.LastCompletedWeek(time.Now().UTC())
		}

		g := report.New(st, client, cfg.Report, cfg.LLM)
		rpt, err := g.Generate(ctx, weekStart, weekEnd)
		if err != nil {
			return eris.Wrap(err, "generate report")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rpt)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportWeek, "week", "", "week start date YYYY-MM-DD (default last completed week)")
	rootCmd.AddCommand(reportCmd)
}

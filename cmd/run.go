package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/model"
)

var runWeek string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full weekly pipeline: fetch, classify, report, email",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var result *model.PipelineResult
		if runWeek != "" {
			weekStart, weekEnd, err := parseWeek(runWeek)
			if err != nil {
				return err
			}
			result, err = env.Pipeline.RunWeek(ctx, weekStart, weekEnd)
			if err != nil {
				return eris.Wrap(err, "pipeline run")
			}
		} else {
			result, err = env.Pipeline.Run(ctx)
			if err != nil {
				return eris.Wrap(err, "pipeline run")
			}
		}

		zap.L().Info("pipeline finished",
			zap.Bool("success", result.Success),
			zap.Int("steps", len(result.Steps)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runWeek, "week", "", "week start date YYYY-MM-DD (default last completed week)")
	rootCmd.AddCommand(runCmd)
}

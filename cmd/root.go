package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reviewpulse",
	Short: "Weekly app review insights pipeline",
	Long:  "Fetches App Store and Google Play reviews, scrubs PII, classifies themes via Claude, and emails a weekly one-page product pulse.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

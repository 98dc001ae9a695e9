package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the weekly pipeline on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			return eris.Wrapf(err, "load timezone %q", cfg.Schedule.Timezone)
		}

		c := cron.New(cron.WithLocation(loc))
		_, err = c.AddFunc(cfg.Schedule.Cron, func() {
			zap.L().Info("scheduled pipeline run starting")
			result, err := env.Pipeline.Run(ctx)
			if err != nil {
				zap.L().Error("scheduled pipeline run failed", zap.Error(err))
				return
			}
			zap.L().Info("scheduled pipeline run finished",
				zap.Bool("success", result.Success),
				zap.Strings("errors", result.Errors),
			)
		})
		if err != nil {
			return eris.Wrapf(err, "invalid cron expression %q", cfg.Schedule.Cron)
		}

		zap.L().Info("scheduler started",
			zap.String("cron", cfg.Schedule.Cron),
			zap.String("timezone", cfg.Schedule.Timezone),
		)
		c.Start()

		<-ctx.Done()
		zap.L().Info("scheduler stopping")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

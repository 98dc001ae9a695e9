package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kanha1201/app-review-analyser/internal/emailer"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/report"
)

var emailWeek string

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Draft and send the email for a stored weekly report",
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

		var rpt *model.WeeklyReport
		if emailWeek != "" {
			weekStart, _, err := parseWeek(emailWeek)
			if err != nil {
				return err
			}
			rpt, err = st.GetReportByWeek(ctx, weekStart)
			if err != nil {
				return eris.Wrap(err, "load report")
			}
		} else {
			rpt, err = st.GetLatestReport(ctx)
			if err != nil {
				return eris.Wrap(err, "load latest report")
			}
		}
		if rpt == nil {
			return eris.New("no report found, run `reviewpulse report` first")
		}

		g := report.New(st, client, cfg.Report, cfg.LLM)
		draft := g.Draft(ctx, rpt)

		e := emailer.New(cfg.Email, st)
		res, err := e.SendReport(ctx, rpt.ID, draft)
		if err != nil {
			return eris.Wrap(err, "send email")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"subject": draft.Subject,
			"result":  res,
		})
	},
}

func init() {
	emailCmd.Flags().StringVar(&emailWeek, "week", "", "week start date YYYY-MM-DD (default latest report)")
	rootCmd.AddCommand(emailCmd)
}

package emailer

import (
	"context"
	"fmt"
	"net/smtp"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/report"
	"github.com/kanha1201/app-review-analyser/internal/store"
)

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		SMTPHost:   "smtp.example.com",
		SMTPPort:   587,
		SMTPUser:   "pulse@example.com",
		SMTPPass:   "secret",
		From:       "pulse@example.com",
		Recipients: []string{"product@example.com", "support@example.com"},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedReport(t *testing.T, st store.Store) *model.WeeklyReport {
	t.Helper()
	rpt := &model.WeeklyReport{
		WeekStart: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		WeekEnd:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Content:   model.ReportContent{Title: "Pulse", Overview: "Quiet week."},
	}
	require.NoError(t, st.CreateReport(context.Background(), rpt))
	return rpt
}

func TestSendReport_Success(t *testing.T) {
	st := newTestStore(t)
	rpt := seedReport(t, st)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	e := New(testEmailConfig(), st)
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	draft := &report.EmailDraft{Subject: "Weekly Product Pulse", Body: "Hi Team,\n\nAll good."}
	res, err := e.SendReport(context.Background(), rpt.ID, draft)
	require.NoError(t, err)

	assert.True(t, res.Sent)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "pulse@example.com", gotFrom)
	assert.Equal(t, []string{"product@example.com", "support@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Weekly Product Pulse\r\n")
	assert.Contains(t, string(gotMsg), "To: product@example.com, support@example.com\r\n")
	assert.Contains(t, string(gotMsg), "Hi Team,\r\n\r\nAll good.")

	saved, err := st.GetReportByWeek(context.Background(), rpt.WeekStart)
	require.NoError(t, err)
	require.NotNil(t, saved.EmailSentAt)
}

func TestSendReport_SkipsWhenUnconfigured(t *testing.T) {
	st := newTestStore(t)
	rpt := seedReport(t, st)

	cfg := testEmailConfig()
	cfg.SMTPPass = ""
	e := New(cfg, st)
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send should not be called")
		return nil
	}

	res, err := e.SendReport(context.Background(), rpt.ID, &report.EmailDraft{Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "smtp credentials not configured", res.Reason)

	saved, err := st.GetReportByWeek(context.Background(), rpt.WeekStart)
	require.NoError(t, err)
	assert.Nil(t, saved.EmailSentAt)
}

func TestSendReport_SkipsWithoutRecipients(t *testing.T) {
	st := newTestStore(t)
	rpt := seedReport(t, st)

	cfg := testEmailConfig()
	cfg.Recipients = nil
	e := New(cfg, st)

	res, err := e.SendReport(context.Background(), rpt.ID, &report.EmailDraft{Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "no recipients configured", res.Reason)
}

func TestSendReport_SMTPErrorLeavesReportUnstamped(t *testing.T) {
	st := newTestStore(t)
	rpt := seedReport(t, st)

	e := New(testEmailConfig(), st)
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		return fmt.Errorf("connection refused")
	}

	_, err := e.SendReport(context.Background(), rpt.ID, &report.EmailDraft{Subject: "s", Body: "b"})
	require.Error(t, err)

	saved, err := st.GetReportByWeek(context.Background(), rpt.WeekStart)
	require.NoError(t, err)
	assert.Nil(t, saved.EmailSentAt)
}

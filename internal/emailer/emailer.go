// Package emailer delivers weekly report drafts over SMTP. Delivery is
// best effort: missing configuration produces a skipped result, not an
// error, so a pipeline run never fails on email.
package emailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/report"
	"github.com/kanha1201/app-review-analyser/internal/store"
)

// Result describes the outcome of one send attempt.
type Result struct {
	Sent       bool       `json:"sent"`
	Skipped    bool       `json:"skipped"`
	Reason     string     `json:"reason,omitempty"`
	Recipients []string   `json:"recipients,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

// sendFunc matches smtp.SendMail, injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Emailer sends report emails and records delivery on the report row.
type Emailer struct {
	cfg   config.EmailConfig
	store store.Store
	send  sendFunc
}

// New creates an Emailer.
func New(cfg config.EmailConfig, st store.Store) *Emailer {
	return &Emailer{cfg: cfg, store: st, send: smtp.SendMail}
}

// Configured reports whether enough SMTP settings are present to attempt
// a send.
func (e *Emailer) Configured() bool {
	return e.cfg.SMTPHost != "" && e.cfg.SMTPUser != "" && e.cfg.SMTPPass != "" && len(e.cfg.Recipients) > 0
}

// SendReport delivers the draft for a stored report and stamps the
// report as emailed on success.
func (e *Emailer) SendReport(ctx context.Context, reportID string, draft *report.EmailDraft) (*Result, error) {
	if !e.Configured() {
		reason := "smtp credentials not configured"
		if e.cfg.SMTPHost != "" && e.cfg.SMTPUser != "" && e.cfg.SMTPPass != "" {
			reason = "no recipients configured"
		}
		zap.L().Warn("skipping report email", zap.String("reason", reason))
		return &Result{Skipped: true, Reason: reason}, nil
	}

	from := e.cfg.From
	if from == "" {
		from = e.cfg.SMTPUser
	}

	msg := buildMessage(from, e.cfg.Recipients, draft.Subject, draft.Body)
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	auth := smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPass, e.cfg.SMTPHost)

	zap.L().Info("sending report email",
		zap.String("smtp", addr),
		zap.Int("recipients", len(e.cfg.Recipients)),
	)
	if err := e.send(addr, auth, from, e.cfg.Recipients, msg); err != nil {
		return nil, eris.Wrap(err, "emailer: send")
	}

	sentAt := time.Now().UTC()
	if err := e.store.MarkReportEmailed(ctx, reportID, sentAt); err != nil {
		return nil, eris.Wrap(err, "emailer: mark report emailed")
	}

	zap.L().Info("report email sent", zap.String("report_id", reportID))
	return &Result{Sent: true, Recipients: e.cfg.Recipients, SentAt: &sentAt}, nil
}

// buildMessage assembles an RFC 5322 plain text message.
func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

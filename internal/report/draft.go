package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/sanitize"
	"github.com/kanha1201/app-review-analyser/pkg/llm"
)

const emailMaxWords = 350

// EmailDraft is a ready-to-send subject and plain text body.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Draft produces the email for a weekly report. The body is drafted by
// the model with a template fallback, scrubbed for PII a final time and
// compressed if it overruns the word limit, so Draft never fails.
func (g *Generator) Draft(ctx context.Context, rpt *model.WeeklyReport) *EmailDraft {
	subject := fmt.Sprintf("Weekly Product Pulse – %s (%s–%s)",
		g.cfg.ProductName,
		rpt.WeekStart.Format("Jan 02"),
		rpt.WeekEnd.Format("Jan 02, 2006"),
	)

	body := g.draftBody(ctx, rpt)
	body = scrubPII(body)

	if words := len(strings.Fields(body)); words > emailMaxWords {
		zap.L().Warn("email body over word limit, compressing", zap.Int("words", words))
		body = g.compressBody(ctx, body)
	}

	return &EmailDraft{Subject: subject, Body: body}
}

func (g *Generator) draftBody(ctx context.Context, rpt *model.WeeklyReport) string {
	pulseJSON, err := json.MarshalIndent(rpt.Content, "", "  ")
	if err != nil {
		zap.L().Error("failed to marshal pulse for email draft", zap.Error(err))
		return g.fallbackBody(rpt)
	}

	prompt := fmt.Sprintf(emailBodyPrompt, string(pulseJSON), g.cfg.ProductName, emailMaxWords)
	resp, err := g.llm.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: &g.temp,
	})
	if err != nil {
		zap.L().Error("email body generation failed, using template", zap.Error(err))
		return g.fallbackBody(rpt)
	}
	return strings.TrimSpace(stripFences(resp.Text))
}

// fallbackBody renders the pulse into a fixed plain text template.
func (g *Generator) fallbackBody(rpt *model.WeeklyReport) string {
	c := rpt.Content
	var b strings.Builder

	fmt.Fprintf(&b, "Hi Team,\n\nHere's the weekly product pulse for %s covering %s to %s.\n\n",
		g.cfg.ProductName,
		rpt.WeekStart.Format("January 02"),
		rpt.WeekEnd.Format("January 02, 2006"),
	)
	fmt.Fprintf(&b, "%s\n\n%s\n\nTop Themes:\n", c.Title, c.Overview)
	for _, t := range c.Themes {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Summary)
	}
	b.WriteString("\nUser Quotes:\n")
	for _, q := range c.Quotes {
		fmt.Fprintf(&b, "- [%s] %q\n", q.Theme, q.Text)
	}
	b.WriteString("\nAction Ideas:\n")
	for _, a := range c.Actions {
		fmt.Fprintf(&b, "- [%s] %s\n", a.Theme, a.Text)
	}
	b.WriteString("\nPlease share any questions or feedback.\n\nBest regards,\nProduct Insights Team")

	return b.String()
}

// compressBody rewrites an overlong body; if the rewrite fails, the
// body is truncated at the word limit instead.
func (g *Generator) compressBody(ctx context.Context, body string) string {
	prompt := fmt.Sprintf(compressEmailPrompt, emailMaxWords, body)
	resp, err := g.llm.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: &g.temp,
	})
	if err != nil {
		zap.L().Error("email compression failed, truncating", zap.Error(err))
		words := strings.Fields(body)
		if len(words) > emailMaxWords {
			return strings.Join(words[:emailMaxWords], " ") + "...\n\n[Email truncated due to length]"
		}
		return body
	}
	return strings.TrimSpace(stripFences(resp.Text))
}

// scrubPII is the last defense before a body leaves the system.
func scrubPII(text string) string {
	text = sanitize.RemoveEmails(text)
	text = sanitize.RemovePhones(text)
	return sanitize.RemoveURLs(text)
}

// stripFences removes a wrapping markdown code block, which models emit
// even when asked for plain text.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Package llm provides text generation clients for the Anthropic messages
// API, with a shared interface so callers do not care which transport is
// in use.
package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest describes a single generation call.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// GenerateResponse carries the generated text and token accounting.
type GenerateResponse struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// LogUsage logs token consumption with structured fields.
func (u TokenUsage) LogUsage(model, phase string) {
	zap.L().Info("llm usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
	)
}

// CleanJSON strips markdown code fences and surrounding prose from a model
// response so the remainder parses as a JSON document. It returns the slice
// between the first opening brace or bracket and its matching final
// counterpart; if neither is found the trimmed input is returned as-is.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start, end := objStart, strings.LastIndexByte(s, '}')
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		start, end = arrStart, strings.LastIndexByte(s, ']')
	}
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

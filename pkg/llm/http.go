package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kanha1201/app-review-analyser/internal/resilience"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	apiVersion        = "2023-06-01"
	rateLimitBackoff  = 5 * time.Second
	rateLimitAttempts = 3
)

// retryInPattern matches server messages like "retry in 12s" or
// "Please retry in 3.5 seconds".
var retryInPattern = regexp.MustCompile(`(?i)retry in (\d+(?:\.\d+)?)\s*s`)

// Option configures the HTTP client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewHTTPClient creates a generation client that talks to the messages API
// directly over HTTP. Rate-limit responses are retried with the delay the
// server advises, falling back to exponential backoff from a 5s base.
func NewHTTPClient(apiKey, model string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type messageRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []httpMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type httpMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (c *httpClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    rateLimitAttempts,
		InitialBackoff: rateLimitBackoff,
		Multiplier:     2.0,
		JitterFraction: -1,
		ShouldRetry:    isRateLimited,
		OnRetry:        resilience.RetryLogger("llm", "generate"),
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*GenerateResponse, error) {
		return c.generateOnce(ctx, req)
	})
}

func (c *httpClient) generateOnce(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(messageRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []httpMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "llm: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "llm: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "llm: read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &resilience.TransientError{
			Err:        eris.Errorf("llm: rate limited: %s", string(respBody)),
			StatusCode: resp.StatusCode,
			RetryAfter: advisedDelay(resp, respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("llm: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result messageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "llm: unmarshal response")
	}

	var text string
	for _, b := range result.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}

	return &GenerateResponse{
		Text: text,
		Usage: TokenUsage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
	}, nil
}

func isRateLimited(err error) bool {
	var te *resilience.TransientError
	return errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests
}

// advisedDelay extracts the wait the server asked for, checking the
// Retry-After header first, then "retry in <n>s" phrasing in the body.
// Returns 0 when the server gave no hint.
func advisedDelay(resp *http.Response, body []byte) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	if m := retryInPattern.FindSubmatch(body); m != nil {
		if secs, err := strconv.ParseFloat(string(m[1]), 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}

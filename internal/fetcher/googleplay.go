package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/resilience"
)

const (
	batchExecutePath = "/_/PlayStoreUi/data/batchexecute"
	reviewsRPCID     = "UsvDTd"
	sortNewest       = 2
)

// GooglePlayFetcher pulls reviews from the Play Store internal
// batchexecute endpoint, newest first, following continuation tokens.
type GooglePlayFetcher struct {
	cfg     config.GooglePlayConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewGooglePlay creates a Google Play fetcher.
func NewGooglePlay(cfg config.GooglePlayConfig) *GooglePlayFetcher {
	pagesPerSec := cfg.PagesPerSec
	if pagesPerSec <= 0 {
		pagesPerSec = 2
	}
	return &GooglePlayFetcher{
		cfg:     cfg,
		client:  newHTTPClient(30 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(pagesPerSec), 1),
	}
}

func (f *GooglePlayFetcher) Platform() model.Platform {
	return model.PlatformGooglePlay
}

// Fetch pages through reviews newest-first and stops early once a page
// crosses the cutoff, since every following review is older still.
func (f *GooglePlayFetcher) Fetch(ctx context.Context, cutoff time.Time) ([]model.RawReview, error) {
	log := zap.L()
	log.Info("fetching google play reviews",
		zap.String("app_id", f.cfg.AppID),
		zap.String("country", f.cfg.Country),
	)

	maxReviews := f.cfg.MaxReviews
	if maxReviews <= 0 {
		maxReviews = 5000
	}
	pageSize := f.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	var reviews []model.RawReview
	token := ""
	for len(reviews) < maxReviews {
		page, nextToken, err := f.fetchPage(ctx, pageSize, token)
		if err != nil {
			return reviews, err
		}
		if len(page) == 0 {
			break
		}

		crossedCutoff := false
		for _, r := range page {
			if r.ReviewDate.Before(cutoff) {
				crossedCutoff = true
				break
			}
			reviews = append(reviews, r)
			if len(reviews) >= maxReviews {
				break
			}
		}

		if crossedCutoff || nextToken == "" {
			break
		}
		token = nextToken
	}

	log.Info("fetched google play reviews", zap.Int("count", len(reviews)))
	return reviews, nil
}

func (f *GooglePlayFetcher) fetchPage(ctx context.Context, count int, token string) ([]model.RawReview, string, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("googleplay", "fetch page")

	type pageResult struct {
		reviews []model.RawReview
		token   string
	}
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (pageResult, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return pageResult{}, eris.Wrap(err, "googleplay: rate limiter")
		}

		reqURL := fmt.Sprintf("%s%s?hl=%s&gl=%s", f.cfg.BaseURL, batchExecutePath, f.cfg.Language, f.cfg.Country)
		body := url.Values{"f.req": {f.requestEnvelope(count, token)}}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body.Encode()))
		if err != nil {
			return pageResult{}, eris.Wrap(err, "googleplay: create request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
		req.Header.Set("User-Agent", defaultUserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return pageResult{}, eris.Wrap(err, "googleplay: send request")
		}
		defer resp.Body.Close()

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return pageResult{}, resilience.NewTransientError(
				eris.Errorf("googleplay: status %d", resp.StatusCode), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return pageResult{}, eris.Errorf("googleplay: status %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return pageResult{}, eris.Wrap(err, "googleplay: read response")
		}

		reviews, nextToken, err := parseBatchResponse(raw)
		if err != nil {
			return pageResult{}, err
		}
		return pageResult{reviews: reviews, token: nextToken}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return res.reviews, res.token, nil
}

// requestEnvelope builds the f.req form value for the reviews RPC.
func (f *GooglePlayFetcher) requestEnvelope(count int, token string) string {
	tokenJSON := "null"
	if token != "" {
		b, _ := json.Marshal(token)
		tokenJSON = string(b)
	}
	inner := fmt.Sprintf(`[null,null,[2,%d,[%d,null,%s],null,[]],[%q,7]]`,
		sortNewest, count, tokenJSON, f.cfg.AppID)

	innerJSON, _ := json.Marshal(inner)
	return fmt.Sprintf(`[[["%s",%s,null,"generic"]]]`, reviewsRPCID, string(innerJSON))
}

// parseBatchResponse unwraps the anti-hijacking prefix and the doubly
// JSON-encoded payload of a batchexecute response.
func parseBatchResponse(raw []byte) ([]model.RawReview, string, error) {
	body := strings.TrimSpace(string(raw))
	if i := strings.IndexByte(body, '\n'); strings.HasPrefix(body, ")]}'") && i >= 0 {
		body = body[i+1:]
	}

	var envelope []any
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, "", eris.Wrap(err, "googleplay: decode envelope")
	}

	payload := jsonPath(envelope, 0, 2)
	payloadStr, ok := payload.(string)
	if !ok || payloadStr == "" {
		// No payload means no more reviews.
		return nil, "", nil
	}

	var data []any
	if err := json.Unmarshal([]byte(payloadStr), &data); err != nil {
		return nil, "", eris.Wrap(err, "googleplay: decode payload")
	}
	if len(data) == 0 {
		return nil, "", nil
	}

	items, _ := data[0].([]any)
	reviews := make([]model.RawReview, 0, len(items))
	for _, it := range items {
		row, ok := it.([]any)
		if !ok {
			continue
		}
		r, err := parseReviewRow(row)
		if err != nil {
			zap.L().Warn("skipping malformed review row", zap.Error(err))
			continue
		}
		reviews = append(reviews, r)
	}

	token := ""
	if len(data) > 1 {
		if t, ok := jsonPath(data[len(data)-1], -1).(string); ok {
			token = t
		}
	}
	return reviews, token, nil
}

// parseReviewRow maps the positional fields of one review entry.
func parseReviewRow(row []any) (model.RawReview, error) {
	text, _ := jsonPath(row, 4).(string)
	if text == "" {
		return model.RawReview{}, eris.New("empty review content")
	}

	seconds, ok := jsonPath(row, 5, 0).(float64)
	if !ok {
		return model.RawReview{}, eris.New("missing review timestamp")
	}

	rating := 0
	if score, ok := jsonPath(row, 2).(float64); ok {
		rating = int(score)
	}

	raw := map[string]any{}
	if id, ok := jsonPath(row, 0).(string); ok {
		raw["id"] = id
	}
	if thumbs, ok := jsonPath(row, 6).(float64); ok {
		raw["thumbs_up"] = int(thumbs)
	}
	if reply, ok := jsonPath(row, 7, 1).(string); ok {
		raw["reply_content"] = reply
	}

	version, _ := jsonPath(row, 10).(string)

	return model.RawReview{
		Platform:   model.PlatformGooglePlay,
		Rating:     rating,
		Text:       text,
		ReviewDate: time.Unix(int64(seconds), 0).UTC(),
		AppVersion: version,
		Raw:        raw,
	}, nil
}

// jsonPath walks nested []any values by index; negative indexes count
// from the end. Returns nil when the path does not resolve.
func jsonPath(v any, path ...int) any {
	for _, idx := range path {
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		if idx < 0 {
			idx += len(arr)
		}
		if idx < 0 || idx >= len(arr) {
			return nil
		}
		v = arr[idx]
	}
	return v
}

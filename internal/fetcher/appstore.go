package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
	"github.com/kanha1201/app-review-analyser/internal/resilience"
)

const appStorePageSize = 20

// Bearer tokens are embedded in the app landing page, URL-encoded inside
// the web experience config blob.
var (
	encodedTokenPattern = regexp.MustCompile(`token%22%3A%22([^%"]+)%22`)
	plainTokenPattern   = regexp.MustCompile(`"token"\s*:\s*"([^"]+)"`)
)

// AppStoreFetcher pulls reviews from the App Store catalog API, falling
// back to the public RSS feed when the catalog is unreachable.
type AppStoreFetcher struct {
	cfg     config.AppStoreConfig
	client  *http.Client
	limiter *AdaptiveLimiter
	rss     *RSSFetcher
}

// NewAppStore creates an App Store fetcher.
func NewAppStore(cfg config.AppStoreConfig) *AppStoreFetcher {
	return &AppStoreFetcher{
		cfg:     cfg,
		client:  newHTTPClient(30 * time.Second),
		limiter: NewAdaptiveLimiter(2, 2),
		rss:     NewRSS(cfg),
	}
}

func (f *AppStoreFetcher) Platform() model.Platform {
	return model.PlatformAppStore
}

// Fetch tries each configured app-name variant against the catalog API and
// falls back to the RSS feed when none of them yields reviews.
func (f *AppStoreFetcher) Fetch(ctx context.Context, cutoff time.Time) ([]model.RawReview, error) {
	log := zap.L()
	log.Info("fetching app store reviews",
		zap.String("app_id", f.cfg.AppID),
		zap.String("country", f.cfg.Country),
	)

	variants := f.nameVariants()
	for _, name := range variants {
		log.Info("trying app name variant", zap.String("app_name", name))

		token, err := f.fetchToken(ctx, name)
		if err != nil {
			log.Warn("token fetch failed for variant",
				zap.String("app_name", name), zap.Error(err))
			continue
		}

		reviews, err := f.fetchPages(ctx, token, cutoff)
		if err != nil {
			log.Warn("catalog fetch failed for variant",
				zap.String("app_name", name), zap.Error(err))
			continue
		}
		if len(reviews) > 0 {
			log.Info("fetched app store reviews",
				zap.String("app_name", name), zap.Int("count", len(reviews)))
			return reviews, nil
		}
	}

	log.Warn("catalog scraper failed, falling back to rss feed")
	return f.rss.Fetch(ctx, cutoff)
}

func (f *AppStoreFetcher) nameVariants() []string {
	variants := []string{}
	if f.cfg.AppName != "" {
		variants = append(variants, f.cfg.AppName)
	}
	for _, v := range f.cfg.NameVariants {
		if v != f.cfg.AppName {
			variants = append(variants, v)
		}
	}
	return variants
}

// fetchToken loads the app landing page for the given name variant and
// extracts the bearer token the catalog API requires.
func (f *AppStoreFetcher) fetchToken(ctx context.Context, appName string) (string, error) {
	pageURL := fmt.Sprintf("%s/%s/app/%s/id%s",
		f.cfg.WebURL, f.cfg.Country, slugify(appName), f.cfg.AppID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "appstore: create token request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "appstore: fetch landing page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("appstore: landing page status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "appstore: read landing page")
	}

	if m := encodedTokenPattern.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	if m := plainTokenPattern.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	return "", eris.Errorf("appstore: no token in landing page %s", pageURL)
}

type catalogPage struct {
	Next string `json:"next"`
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Rating            int            `json:"rating"`
			Title             string         `json:"title"`
			Review            string         `json:"review"`
			Date              time.Time      `json:"date"`
			UserName          string         `json:"userName"`
			DeveloperResponse map[string]any `json:"developerResponse"`
		} `json:"attributes"`
	} `json:"data"`
}

// fetchPages pages through the catalog reviews endpoint until the batch
// cap is reached or no page remains. Entries older than cutoff are skipped.
func (f *AppStoreFetcher) fetchPages(ctx context.Context, token string, cutoff time.Time) ([]model.RawReview, error) {
	batchCap := f.cfg.BatchCap
	if batchCap <= 0 {
		batchCap = 200
	}

	var reviews []model.RawReview
	offset := 0
	for len(reviews) < batchCap {
		page, err := f.fetchPage(ctx, token, offset)
		if err != nil {
			return reviews, err
		}
		if len(page.Data) == 0 {
			break
		}

		for _, d := range page.Data {
			if d.Attributes.Date.Before(cutoff) {
				continue
			}
			reviews = append(reviews, model.RawReview{
				Platform:   model.PlatformAppStore,
				Rating:     d.Attributes.Rating,
				Title:      d.Attributes.Title,
				Text:       d.Attributes.Review,
				ReviewDate: d.Attributes.Date,
				Raw: map[string]any{
					"id":                 d.ID,
					"user_name":          d.Attributes.UserName,
					"developer_response": d.Attributes.DeveloperResponse,
				},
			})
			if len(reviews) >= batchCap {
				break
			}
		}

		if page.Next == "" {
			break
		}
		offset += appStorePageSize
	}
	return reviews, nil
}

func (f *AppStoreFetcher) fetchPage(ctx context.Context, token string, offset int) (*catalogPage, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("appstore", "fetch page")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*catalogPage, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "appstore: rate limiter")
		}

		reqURL := fmt.Sprintf("%s/v1/catalog/%s/apps/%s/reviews?l=en&offset=%d&limit=%d&platform=web",
			f.cfg.ScrapeURL, f.cfg.Country, f.cfg.AppID, offset, appStorePageSize)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "appstore: create page request")
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Origin", f.cfg.WebURL)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "appstore: fetch page")
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			f.limiter.OnRateLimit()
			return nil, resilience.NewTransientError(
				eris.Errorf("appstore: rate limited at offset %d", offset), resp.StatusCode)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("appstore: page status %d at offset %d", resp.StatusCode, offset), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("appstore: page status %d at offset %d", resp.StatusCode, offset)
		}

		var page catalogPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, eris.Wrap(err, "appstore: decode page")
		}
		f.limiter.OnSuccess()
		return &page, nil
	})
}

// slugify converts an app name variant to the URL slug the store web
// pages use.
func slugify(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
)

const rssMaxReviews = 500

// RSSFetcher pulls App Store reviews from the public customer-reviews
// feed. It only reaches the most recent page, so it serves as a fallback
// rather than a primary source.
type RSSFetcher struct {
	cfg    config.AppStoreConfig
	parser *gofeed.Parser
}

// NewRSS creates an RSS feed fetcher.
func NewRSS(cfg config.AppStoreConfig) *RSSFetcher {
	p := gofeed.NewParser()
	p.UserAgent = defaultUserAgent
	return &RSSFetcher{cfg: cfg, parser: p}
}

func (f *RSSFetcher) Platform() model.Platform {
	return model.PlatformAppStore
}

func (f *RSSFetcher) Fetch(ctx context.Context, cutoff time.Time) ([]model.RawReview, error) {
	feedURL := fmt.Sprintf("%s/%s/rss/customerreviews/page=1/id=%s/sortby=mostrecent/xml",
		f.cfg.RSSURL, f.cfg.Country, f.cfg.AppID)

	zap.L().Info("fetching app store rss feed", zap.String("url", feedURL))

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, eris.Wrap(err, "rss: parse feed")
	}

	var reviews []model.RawReview
	for _, item := range feed.Items {
		if len(reviews) >= rssMaxReviews {
			break
		}
		if item.Content == "" {
			continue
		}

		var reviewDate time.Time
		switch {
		case item.UpdatedParsed != nil:
			reviewDate = *item.UpdatedParsed
		case item.PublishedParsed != nil:
			reviewDate = *item.PublishedParsed
		default:
			zap.L().Warn("rss entry without date, skipping", zap.String("title", item.Title))
			continue
		}
		if reviewDate.Before(cutoff) {
			continue
		}

		reviews = append(reviews, model.RawReview{
			Platform:   model.PlatformAppStore,
			Rating:     itunesExtensionInt(item, "rating"),
			Title:      item.Title,
			Text:       item.Content,
			ReviewDate: reviewDate,
			AppVersion: itunesExtension(item, "version"),
			Raw:        map[string]any{"source": "rss", "guid": item.GUID},
		})
	}

	zap.L().Info("fetched rss reviews", zap.Int("count", len(reviews)))
	return reviews, nil
}

// itunesExtension reads an im:-namespaced extension value from a feed item.
func itunesExtension(item *gofeed.Item, name string) string {
	exts, ok := item.Extensions["im"]
	if !ok {
		return ""
	}
	vals, ok := exts[name]
	if !ok || len(vals) == 0 {
		return ""
	}
	return vals[0].Value
}

func itunesExtensionInt(item *gofeed.Item, name string) int {
	n, err := strconv.Atoi(itunesExtension(item, name))
	if err != nil {
		return 0
	}
	return n
}

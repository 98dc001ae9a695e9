package sanitize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kanha1201/app-review-analyser/internal/config"
	"github.com/kanha1201/app-review-analyser/internal/model"
)

func TestCleanRemovesPII(t *testing.T) {
	in := "Contact me at john.doe@example.com or call 9876543210, see https://example.com/help"
	got := Clean(in, true)

	assert.Contains(t, got, "[EMAIL_REMOVED]")
	assert.Contains(t, got, "[PHONE_REMOVED]")
	assert.Contains(t, got, "[URL_REMOVED]")
	assert.NotContains(t, got, "john.doe@example.com")
	assert.NotContains(t, got, "9876543210")
	assert.NotContains(t, got, "example.com/help")
}

func TestCleanStripsHTMLAndWhitespace(t *testing.T) {
	got := Clean("<p>Great   app!</p>\n\n<br/>Works   well", true)
	assert.Equal(t, "Great app! Works well", got)
}

func TestCleanNormalizesQuotes(t *testing.T) {
	got := Clean("“best” app, won’t uninstall", true)
	assert.Equal(t, `"best" app, won't uninstall`, got)
}

func TestCleanRemovesEmojis(t *testing.T) {
	assert.Equal(t, "Love this app", Clean("Love this app \U0001F600\U0001F680", true))
	assert.Contains(t, Clean("Love this app \U0001F600", false), "\U0001F600")
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"email me: a@b.com and 9876543210",
		"<b>bold</b> claim with https://x.dev/path",
		"plain text, nothing to do here",
	}
	for _, in := range inputs {
		once := Clean(in, true)
		assert.Equal(t, once, Clean(once, true))
	}
}

func TestContainsPII(t *testing.T) {
	assert.True(t, ContainsPII("reach me at x@y.com"))
	assert.True(t, ContainsPII("call +91 9876543210"))
	assert.False(t, ContainsPII("no personal info here"))
	assert.False(t, ContainsPII(Clean("reach me at x@y.com", true)))
}

func TestIsEnglish(t *testing.T) {
	assert.True(t, IsEnglish("this is a great app and I love it", englishMinConfidence))
	assert.False(t, IsEnglish("बहुत अच्छा ऐप", englishMinConfidence))
	assert.False(t, IsEnglish("", englishMinConfidence))
	assert.False(t, IsEnglish("   ", englishMinConfidence))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 4, CountWords("this app is great"))
	assert.Equal(t, 5, CountWords("works well, crashes on startup"))
}

func newTestProcessor() *Processor {
	return NewProcessor(config.SanitizeConfig{
		MinWords:     4,
		EnglishOnly:  true,
		StripEmoji:   true,
		WeeksLookMax: 12,
	})
}

func TestProcessorFiltersByWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProcessor()

	raw := []model.RawReview{
		{Platform: model.PlatformAppStore, Text: "this app works really well for trading", ReviewDate: now.AddDate(0, 0, -14)},
		{Platform: model.PlatformAppStore, Text: "too recent to be included in the batch", ReviewDate: now.AddDate(0, 0, -2)},
		{Platform: model.PlatformAppStore, Text: "this one is far too old to keep", ReviewDate: now.AddDate(0, 0, -7*13)},
		{Platform: model.PlatformAppStore, Text: "review has no date so it gets dropped"},
	}

	got, report := p.Process(raw, now)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 3, report.OutOfWindow)
}

func TestProcessorFiltersShortAndNonEnglish(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	date := now.AddDate(0, 0, -14)
	p := newTestProcessor()

	raw := []model.RawReview{
		{Platform: model.PlatformGooglePlay, Text: "nice app", ReviewDate: date},
		{Platform: model.PlatformGooglePlay, Text: "four words not enough", ReviewDate: date},
		{Platform: model.PlatformGooglePlay, Text: "five words just clears it", ReviewDate: date.Add(time.Minute)},
		{Platform: model.PlatformGooglePlay, Text: "हिंदी में लिखी गई बहुत लंबी समीक्षा", ReviewDate: date},
		{Platform: model.PlatformGooglePlay, Text: "this is a good app that works very well", ReviewDate: date.Add(2 * time.Minute)},
	}

	got, report := p.Process(raw, now)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, report.TooShort)
	assert.Equal(t, 1, report.NonEnglish)
}

func TestProcessorPreservesOriginalText(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProcessor()

	original := "the app is great but support ignores my mail a@b.com every time"
	got, report := p.Process([]model.RawReview{{
		Platform:   model.PlatformAppStore,
		Text:       original,
		ReviewDate: now.AddDate(0, 0, -10),
	}}, now)

	assert.Len(t, got, 1)
	assert.Equal(t, original, got[0].ReviewText)
	assert.Contains(t, got[0].CleanedText, "[EMAIL_REMOVED]")
	assert.False(t, strings.Contains(got[0].CleanedText, "a@b.com"))
	assert.Equal(t, 1, report.PIIFound)
}

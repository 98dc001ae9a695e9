// Package sanitize cleans raw review text: HTML stripping, PII removal,
// emoji and quote normalization, plus the filters that decide whether a
// review is worth keeping at all.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	emailTag = "[EMAIL_REMOVED]"
	phoneTag = "[PHONE_REMOVED]"
	urlTag   = "[URL_REMOVED]"
)

var (
	htmlTagPattern     = regexp.MustCompile(`<.*?>`)
	emailPattern       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern       = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	indianPhonePattern = regexp.MustCompile(`(\+91[-.\s]?)?[6-9]\d{9}`)
	urlPattern         = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	emojiPattern       = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2702}-\x{27B0}\x{24C2}-\x{1F251}]+`)
	multiSpacePattern  = regexp.MustCompile(`\s+`)
)

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// StripHTML removes markup tags, leaving the text content.
func StripHTML(text string) string {
	return htmlTagPattern.ReplaceAllString(text, " ")
}

// RemoveEmails replaces email addresses with a placeholder tag.
func RemoveEmails(text string) string {
	return emailPattern.ReplaceAllString(text, emailTag)
}

// RemovePhones replaces phone numbers (generic and Indian mobile formats)
// with a placeholder tag.
func RemovePhones(text string) string {
	text = phonePattern.ReplaceAllString(text, phoneTag)
	return indianPhonePattern.ReplaceAllString(text, phoneTag)
}

// RemoveURLs replaces URLs with a placeholder tag.
func RemoveURLs(text string) string {
	return urlPattern.ReplaceAllString(text, urlTag)
}

// RemoveEmojis strips emoji and pictograph codepoints.
func RemoveEmojis(text string) string {
	return emojiPattern.ReplaceAllString(text, "")
}

// NormalizeQuotes replaces curly quotes with straight quotes.
func NormalizeQuotes(text string) string {
	return quoteReplacer.Replace(text)
}

// NormalizeWhitespace collapses whitespace runs into single spaces and trims.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(text, " "))
}

// Clean runs the full cleaning pipeline in order: HTML, emails, phones,
// URLs, emoji (optional), quote normalization, whitespace normalization.
// Cleaning is idempotent: Clean(Clean(s)) == Clean(s).
func Clean(text string, stripEmoji bool) string {
	if text == "" {
		return ""
	}

	text = StripHTML(text)
	text = RemoveEmails(text)
	text = RemovePhones(text)
	text = RemoveURLs(text)
	if stripEmoji {
		text = RemoveEmojis(text)
	}
	text = NormalizeQuotes(text)
	return NormalizeWhitespace(text)
}

// ContainsPII reports whether text still matches an email or phone pattern.
func ContainsPII(text string) bool {
	if emailPattern.MatchString(text) {
		return true
	}
	return phonePattern.MatchString(text) || indianPhonePattern.MatchString(text)
}

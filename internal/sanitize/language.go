package sanitize

import (
	"regexp"
	"strings"
)

// commonEnglishWords is the lexicon used for the English-ratio heuristic.
var commonEnglishWords = map[string]struct{}{}

func init() {
	words := []string{
		"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
		"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
		"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
		"or", "an", "will", "my", "one", "all", "would", "there", "their",
		"what", "so", "up", "out", "if", "about", "who", "get", "which", "go",
		"me", "when", "make", "can", "like", "time", "no", "just", "him", "know",
		"take", "people", "into", "year", "your", "good", "some", "could", "them",
		"see", "other", "than", "then", "now", "look", "only", "come", "its", "over",
		"think", "also", "back", "after", "use", "two", "how", "our", "work", "first",
		"well", "way", "even", "new", "want", "because", "any", "these", "give", "day",
		"most", "us", "app", "great", "very", "much", "more", "best", "easy",
		"love", "nice", "excellent", "amazing", "awesome", "perfect", "wonderful",
	}
	for _, w := range words {
		commonEnglishWords[w] = struct{}{}
	}
}

var (
	asciiWordPattern = regexp.MustCompile(`\b[a-z]+\b`)

	// Unicode-aware so word counting works for any script.
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

	devanagariPattern = regexp.MustCompile(`[\x{0900}-\x{097F}]`)
	chinesePattern    = regexp.MustCompile(`[\x{4E00}-\x{9FFF}]`)
	arabicPattern     = regexp.MustCompile(`[\x{0600}-\x{06FF}]`)
	thaiPattern       = regexp.MustCompile(`[\x{0E00}-\x{0E7F}]`)
)

// IsEnglish reports whether text appears to be English, using a weighted
// blend of lexicon hits (0.6) and ASCII density (0.4) against minConfidence.
// Any non-Latin script character (Devanagari, CJK, Arabic, Thai) rejects
// the text outright.
func IsEnglish(text string, minConfidence float64) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	if devanagariPattern.MatchString(text) ||
		chinesePattern.MatchString(text) ||
		arabicPattern.MatchString(text) ||
		thaiPattern.MatchString(text) {
		return false
	}

	words := asciiWordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return false
	}

	englishCount := 0
	for _, w := range words {
		if _, ok := commonEnglishWords[w]; ok {
			englishCount++
		}
	}
	englishRatio := float64(englishCount) / float64(len(words))

	asciiCount := 0
	runes := []rune(text)
	for _, r := range runes {
		if r < 128 {
			asciiCount++
		}
	}
	asciiRatio := float64(asciiCount) / float64(len(runes))

	confidence := englishRatio*0.6 + asciiRatio*0.4
	return confidence >= minConfidence
}

// CountWords returns the number of word tokens in text.
func CountWords(text string) int {
	return len(wordPattern.FindAllString(text, -1))
}

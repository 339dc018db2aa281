package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeKey lowercases a name/alias and collapses all interior whitespace
// to single spaces. Catalog lookups and cart resolution go through this so
// "BIRYANI " and "biryani" hit the same index entry.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return whitespaceRe.ReplaceAllString(s, " ")
}

// Tokenize splits text into display tokens on whitespace. Empty tokens are
// dropped.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Clamp hard-caps a string to avoid oversized payloads in edge cases.
func Clamp(s string, maxChars int) string {
	if len([]rune(s)) <= maxChars {
		return s
	}
	r := []rune(s)
	return string(r[:maxChars-1]) + "…"
}

// GuessLanguage returns "bn" when the text contains Bengali script, "en"
// when it contains Latin letters, defaulting to "en" if uncertain.
func GuessLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Bengali, r) {
			return "bn"
		}
	}
	for _, r := range text {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
			return "en"
		}
	}
	return "en"
}

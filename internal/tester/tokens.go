package tester

import (
	"strings"
	"unicode"
)

// EstimateTokens approximates the token count of a content delta:
// each CJK ideograph (U+4E00..U+9FFF) counts as one token, each
// whitespace-delimited fully-alphabetic word counts as one token.
// A non-empty delta counts as at least one token; an empty delta is zero.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	cjk := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		}
	}

	words := 0
	for _, w := range strings.Fields(text) {
		if isAlphabetic(w) {
			words++
		}
	}

	if n := cjk + words; n > 1 {
		return n
	}
	return 1
}

func isAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

package tester

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"x", 1},
		{"你好a b", 4},  // two CJK chars plus two alphabetic words
		{"你好", 2},
		{"hello world", 2},
		{"hello, world!", 1}, // punctuation disqualifies a word, floor kicks in
		{"123 456", 1},       // digits only: no CJK, no alphabetic words, floored to 1
		{"  ", 1},            // whitespace is non-empty, floored to 1
		{"深度学习模型", 6},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EstimateTokens(c.text), "text %q", c.text)
	}
}

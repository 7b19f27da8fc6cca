// Package tokens counts cl100k_base tokens for storage statistics.
package tokens

import (
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encoding = "cl100k_base"

var (
	tk     *tiktoken.Tiktoken
	tkErr  error
	tkOnce sync.Once
)

func getTokenizer() (*tiktoken.Tiktoken, error) {
	tkOnce.Do(func() {
		tk, tkErr = tiktoken.GetEncoding(encoding)
	})
	return tk, tkErr
}

// Count returns the token count of text. When the encoding cannot be
// loaded (it is fetched on first use) the count falls back to Estimate.
func Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := getTokenizer()
	if err != nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Exact reports whether Count uses the real encoder.
func Exact() bool {
	_, err := getTokenizer()
	return err == nil
}

// Estimate approximates cl100k_base at four tokens per three words.
func Estimate(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 4 / 3))
}

// PerByte is tokens divided by bytes, zero for empty input.
func PerByte(tokens int, bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}
	return float64(tokens) / float64(bytes)
}

// Package monitoring - tokens.go estimates token counts for telemetry.
//
// DESIGN: Uses tiktoken (cl100k_base) when the encoding can be initialized;
// falls back to a chars/4 estimate otherwise (e.g. offline environments where
// the BPE data cannot be fetched). Estimates feed telemetry only and never
// affect orchestration decisions.
package monitoring

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimateRatio is the approximate number of characters per token,
// used when the tokenizer is unavailable.
const TokenEstimateRatio = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens returns an approximate token count for text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		// Initialization fetches BPE data on first use; failure is not fatal.
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return (len(text) + TokenEstimateRatio - 1) / TokenEstimateRatio
}

// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// UPSTREAM DEFAULTS
// =============================================================================

// DefaultUpstreamPath is the chat-completions endpoint path.
const DefaultUpstreamPath = "/chat/completions"

// DefaultRequestTimeout bounds the initial connection of the streaming call
// and the total duration of non-streaming calls.
const DefaultRequestTimeout = 60 * time.Second

// DefaultSummaryTimeout bounds each summary call attempt.
const DefaultSummaryTimeout = 10 * time.Second

// DefaultMaxRetries is the number of retries after the first attempt
// (3 attempts total).
const DefaultMaxRetries = 2

// DefaultRetryBackoff is the base backoff delay, doubled on each attempt.
const DefaultRetryBackoff = 1 * time.Second

// =============================================================================
// ORCHESTRATION DEFAULTS
// =============================================================================

// DefaultMaxReasoningChars caps the reasoning text fed to the reasoning
// summary call. Truncation keeps the first N characters.
const DefaultMaxReasoningChars = 8000

// =============================================================================
// HTTP AND NETWORKING
// =============================================================================

// DefaultBufferSize is the standard I/O buffer size.
const DefaultBufferSize = 4096

// MaxRequestBodySize is the maximum allowed client request body (10MB).
const MaxRequestBodySize = 10 * 1024 * 1024

// MaxErrorBodyLogLen limits upstream error bodies in logs to prevent bloat.
const MaxErrorBodyLogLen = 500

// DefaultServerReadTimeout for the HTTP server.
const DefaultServerReadTimeout = 30 * time.Second

// DefaultServerWriteTimeout for the HTTP server (safe for streaming).
const DefaultServerWriteTimeout = 10 * time.Minute

// =============================================================================
// RATE LIMITING
// =============================================================================

// DefaultRateLimit is requests per second per IP.
const DefaultRateLimit = 100

// MaxRateLimitBuckets prevents memory exhaustion from too many IP buckets.
const MaxRateLimitBuckets = 10000

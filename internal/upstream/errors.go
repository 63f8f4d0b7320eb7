// Package upstream - errors.go defines the upstream error taxonomy.
//
// DESIGN: Failures are classified for the retry policy:
//   - StatusError 502/503/504: retryable (transient upstream trouble)
//   - other StatusError:       non-retryable (client error, bad request)
//   - transport errors:        retryable (connection refused, reset, DNS)
//   - ErrMalformedResponse:    non-retryable (a retry would see the same body)
package upstream

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse indicates the upstream body did not match the
// chat-completions contract.
var ErrMalformedResponse = errors.New("malformed upstream response")

// StatusError is a non-2xx upstream HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status indicates a transient condition.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case 502, 503, 504:
		return true
	}
	return false
}

// retryable classifies an attempt error for the retry loop. Transport-level
// errors (no HTTP status at all) are treated as transient.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	return true
}

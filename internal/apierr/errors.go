// Package apierr provides shared error sentinels and retry infrastructure
// for the remote services vmrelay talks to (speech backends, Telegram).
// Provider-specific failures are classified into these sentinels at the
// adapter boundary.
//
// Adapters wrap with fmt.Errorf("%s: %w", msg, sentinel).
// Callers check with errors.Is(err, apierr.ErrRateLimit) etc.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for API interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key or credentials).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrUnavailable indicates the remote end could not be reached or answered
	// with a server error (5xx). Retryable.
	ErrUnavailable = errors.New("service unavailable")
)

// RetryAfterError is a rate-limit signal that carries the wait the remote
// end asked for. It matches ErrRateLimit with errors.Is.
type RetryAfterError struct {
	After time.Duration
	Msg   string
}

func (e *RetryAfterError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("rate limited, retry after %s", e.After)
	}
	return fmt.Sprintf("%s (retry after %s)", e.Msg, e.After)
}

// Is reports whether target is ErrRateLimit.
func (e *RetryAfterError) Is(target error) bool {
	return target == ErrRateLimit
}

// RetryAfter extracts the requested wait from err.
// Returns false when err carries no retry-after hint.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) {
		return ra.After, true
	}
	return 0, false
}

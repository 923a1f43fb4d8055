package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrThrottled marks a backend rate-limit response.
	ErrThrottled = errors.New("backend throttled")
	// ErrUnavailable marks a transient backend outage.
	ErrUnavailable = errors.New("backend unavailable")
)

// GenerationError is returned when a completion could not be obtained,
// either because retries were exhausted or the failure was not retryable.
type GenerationError struct {
	Attempts  int
	Retryable bool
	Err       error
}

func (e GenerationError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e GenerationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a throttling or availability failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrUnavailable)
}

// StatusError wraps a non-2xx HTTP status, classifying 429 and 5xx
// gateway statuses as retryable.
func StatusError(status int, body string) error {
	var kind error
	switch status {
	case http.StatusTooManyRequests:
		kind = ErrThrottled
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
		kind = ErrUnavailable
	}
	if kind == nil {
		return fmt.Errorf("backend returned status %d: %s", status, body)
	}
	return fmt.Errorf("%w: status %d: %s", kind, status, body)
}

package provider

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of throttled or unavailable backends.
// MaxAttempts counts the first call; the delay before retry n (0-based)
// is BaseDelay * 2^n.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// OnRetry, when set, is invoked before each sleep.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetryPolicy mirrors llm.max_retries=3, llm.retry_delay=2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

type retrying struct {
	next   Completer
	policy RetryPolicy
	logger *log.Logger
}

// WithRetry wraps next so that ErrThrottled and ErrUnavailable failures are
// retried with exponential backoff. Any other failure, or exhausting the
// attempt budget, yields a GenerationError.
func WithRetry(next Completer, policy RetryPolicy, logger *log.Logger) Completer {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Millisecond
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PROVIDER] ", log.LstdFlags)
	}
	return &retrying{next: next, policy: policy, logger: logger}
}

func (r *retrying) Complete(ctx context.Context, req Request) (string, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = r.policy.BaseDelay << 10
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.policy.MaxAttempts-1)), ctx)

	var (
		out      string
		attempts int
		lastErr  error
	)
	op := func() error {
		attempts++
		text, err := r.next.Complete(ctx, req)
		if err == nil {
			out = text
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Printf("attempt %d/%d failed (%v); retrying in %s", attempts, r.policy.MaxAttempts, err, wait)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempts, err, wait)
		}
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
		}
		return "", GenerationError{Attempts: attempts, Retryable: IsRetryable(lastErr), Err: lastErr}
	}
	return out, nil
}

/*
retry.go - Bounded retry with exponential backoff

PURPOSE:
  Retries store operations that failed because the persistence store was
  unreachable or locked. Only ErrStoreUnavailable qualifies; validation,
  not-found and constraint failures are deterministic and never retried.
  Exhausted retries propagate as fatal for that request only.
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryOptions configures retry behavior for store calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions is the repository's standard policy.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

// withRetry executes operation, retrying only retryable failures with
// exponential backoff. Context cancellation aborts the wait.
func withRetry(ctx context.Context, operation func() error, opts RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRetryOptions.MaxAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultRetryOptions.InitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultRetryOptions.MaxDelay
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = DefaultRetryOptions.Multiplier
	}

	delay := opts.InitialDelay
	var err error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		slog.Warn("store operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}

	return fmt.Errorf("store unavailable after %d attempts: %w", opts.MaxAttempts, err)
}

package datafetcher

import (
	"context"
	"log"
	"time"
)

// RetryExecutor re-runs a failing operation a bounded number of times with
// a constant wait between attempts. The wait is constant rather than
// exponential: the main consumer is the daily price API whose quota resets
// on a fixed schedule, so waiting longer each time buys nothing.
type RetryExecutor struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// WaitTime is the fixed pause between consecutive attempts.
	WaitTime time.Duration
	// ShouldRetry decides whether an error is worth another attempt.
	// A nil predicate retries every error.
	ShouldRetry func(error) bool
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. A spent budget yields a *RetryExhaustedError
// wrapping the last failure. The wait between attempts honors ctx.
func (r *RetryExecutor) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if r.ShouldRetry != nil && !r.ShouldRetry(lastErr) {
			return lastErr
		}

		if attempt == r.MaxAttempts {
			break
		}

		log.Printf("Attempt %d/%d failed (%v), retrying in %s", attempt, r.MaxAttempts, lastErr, r.WaitTime)

		timer := time.NewTimer(r.WaitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return &RetryExhaustedError{Attempts: r.MaxAttempts, LastErr: lastErr}
}

package datafetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between calls to a downstream
// API. The mutex is held across the sleep so concurrent callers are issued
// one at a time, each at least minInterval after the previous issuance.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    time.Time
	now         func() time.Time // replaceable in tests
}

// NewRateLimiter creates a limiter with the given minimum call spacing.
// The first call through a fresh limiter proceeds immediately.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{minInterval: minInterval, now: time.Now}
}

// Wait blocks until at least minInterval has passed since the last issued
// call, then stamps the issuance time and returns. Returns early with the
// context error if ctx is cancelled while waiting.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.lastCall.IsZero() {
		if wait := rl.minInterval - rl.now().Sub(rl.lastCall); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	rl.lastCall = rl.now()
	return nil
}

// RecordCall re-stamps the last call time. Called after a request
// completes so the spacing also covers slow responses.
func (rl *RateLimiter) RecordCall() {
	rl.mu.Lock()
	rl.lastCall = rl.now()
	rl.mu.Unlock()
}

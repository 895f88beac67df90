package datafetcher

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFirstCallIsImmediate(t *testing.T) {
	limiter := NewRateLimiter(time.Second)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiterSpacesConsecutiveCalls(t *testing.T) {
	interval := 50 * time.Millisecond
	limiter := NewRateLimiter(interval)

	require.NoError(t, limiter.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), interval-5*time.Millisecond)
}

func TestRateLimiterSerializesConcurrentCallers(t *testing.T) {
	interval := 30 * time.Millisecond
	limiter := NewRateLimiter(interval)

	var mu sync.Mutex
	var issued []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, limiter.Wait(context.Background()))
			mu.Lock()
			issued = append(issued, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, issued, 4)
	sort.Slice(issued, func(i, j int) bool { return issued[i].Before(issued[j]) })

	for i := 1; i < len(issued); i++ {
		gap := issued[i].Sub(issued[i-1])
		assert.GreaterOrEqual(t, gap, interval-10*time.Millisecond,
			"issuance %d followed %d too quickly", i, i-1)
	}
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	limiter := NewRateLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

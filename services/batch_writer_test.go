package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"stock_api_backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePriceWriter records the batches it receives.
type fakePriceWriter struct {
	mu      sync.Mutex
	batches [][]models.TickerPrice
	err     error
	written chan []models.TickerPrice
}

func (f *fakePriceWriter) UpsertBatch(ctx context.Context, records []models.TickerPrice) error {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	f.batches = append(f.batches, records)
	f.mu.Unlock()

	if f.written != nil {
		f.written <- records
	}
	return nil
}

func (f *fakePriceWriter) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func makePriceRecords(n int) []models.TickerPrice {
	records := make([]models.TickerPrice, n)
	for i := range records {
		records[i] = models.TickerPrice{
			Ticker: "GAW.L",
			Date:   fmt.Sprintf("2026-08-%02d", i+1),
		}
	}
	return records
}

func TestPriceQueueDrainWritesBoundedBatches(t *testing.T) {
	writer := &fakePriceWriter{}
	queue := NewPriceWriteQueue(writer)
	queue.pacing = time.Millisecond

	queue.Push(makePriceRecords(12)...)
	assert.Equal(t, 12, queue.Len())

	require.NoError(t, queue.Drain(context.Background()))

	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, []int{5, 5, 2}, writer.batchSizes())
}

func TestPriceQueueDrainKeepsPacingBetweenBatches(t *testing.T) {
	writer := &fakePriceWriter{}
	queue := NewPriceWriteQueue(writer)
	queue.pacing = 20 * time.Millisecond

	// 20 records means four batches, so three paced gaps.
	queue.Push(makePriceRecords(20)...)

	start := time.Now()
	require.NoError(t, queue.Drain(context.Background()))
	elapsed := time.Since(start)

	assert.Equal(t, []int{5, 5, 5, 5}, writer.batchSizes())
	assert.GreaterOrEqual(t, elapsed, 3*queue.pacing-5*time.Millisecond,
		"drain wrote %d batches in %s, faster than the write budget allows", 4, elapsed)
}

func TestPriceQueueDrainHonorsContextBetweenBatches(t *testing.T) {
	writer := &fakePriceWriter{}
	queue := NewPriceWriteQueue(writer)
	queue.pacing = time.Hour

	queue.Push(makePriceRecords(8)...)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := queue.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The first batch was written before the pacing wait was interrupted.
	assert.Equal(t, []int{5}, writer.batchSizes())
	assert.Equal(t, 3, queue.Len())
}

func TestPriceQueueFlushIsImmediate(t *testing.T) {
	writer := &fakePriceWriter{}
	queue := NewPriceWriteQueue(writer)
	queue.pacing = time.Hour // Flush must not wait on the cadence

	queue.Push(makePriceRecords(12)...)

	start := time.Now()
	require.NoError(t, queue.Flush(context.Background()))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, []int{5, 5, 2}, writer.batchSizes())
}

func TestPriceQueueBackgroundLoopDrainsOnCadence(t *testing.T) {
	writer := &fakePriceWriter{written: make(chan []models.TickerPrice, 4)}
	queue := NewPriceWriteQueue(writer)
	queue.pacing = 10 * time.Millisecond
	queue.Start()
	defer queue.Stop()

	queue.Push(makePriceRecords(7)...)

	var drained int
	for drained < 7 {
		select {
		case batch := <-writer.written:
			assert.LessOrEqual(t, len(batch), priceWriteBatchSize)
			drained += len(batch)
		case <-time.After(time.Second):
			t.Fatalf("queue drained only %d of 7 records", drained)
		}
	}

	assert.Equal(t, 0, queue.Len())
}

func TestPriceQueueFailedBatchIsDroppedAndReported(t *testing.T) {
	writer := &fakePriceWriter{err: errors.New("store down")}
	queue := NewPriceWriteQueue(writer)

	var mu sync.Mutex
	var reported []models.TickerPrice
	queue.SetErrorHandler(func(batch []models.TickerPrice, err error) {
		mu.Lock()
		reported = batch
		mu.Unlock()
	})

	queue.Push(makePriceRecords(8)...)

	err := queue.Drain(context.Background())
	require.Error(t, err)

	mu.Lock()
	assert.Len(t, reported, 5)
	mu.Unlock()

	// The failed batch is dropped; the rest stays queued.
	assert.Equal(t, 3, queue.Len())
}

func TestPriceQueueStopIsIdempotent(t *testing.T) {
	queue := NewPriceWriteQueue(&fakePriceWriter{})
	queue.Start()

	queue.Stop()
	queue.Stop()
}

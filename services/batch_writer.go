package services

import (
	"context"
	"log"
	"sync"
	"time"

	"stock_api_backend/models"
)

const (
	// The store sits on a modest provisioned tier, so writes are paced:
	// at most priceWriteBatchSize records per pacing interval.
	priceWriteBatchSize = 5
	priceWritePacing    = 2 * time.Second
)

// PriceWriter is the sink the queue drains into.
type PriceWriter interface {
	UpsertBatch(ctx context.Context, records []models.TickerPrice) error
}

// PriceWriteQueue decouples producers of price records from the paced
// writes to the time-series store. Push never blocks on I/O; a background
// loop drains bounded batches on a fixed cadence. Records carry the
// (ticker, date) upsert key, so a batch that fails and is pushed again
// cannot duplicate rows.
type PriceWriteQueue struct {
	mu        sync.Mutex
	pending   []models.TickerPrice
	writer    PriceWriter
	batchSize int
	pacing    time.Duration
	onError   func(batch []models.TickerPrice, err error)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPriceWriteQueue creates a queue over the given writer. Start must be
// called before pushed records are drained.
func NewPriceWriteQueue(writer PriceWriter) *PriceWriteQueue {
	return &PriceWriteQueue{
		writer:    writer,
		batchSize: priceWriteBatchSize,
		pacing:    priceWritePacing,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetErrorHandler installs a hook invoked when a batch write fails. The
// failed batch is dropped for the cycle; delivery is at-least-once only
// if the producer pushes it again.
func (q *PriceWriteQueue) SetErrorHandler(fn func(batch []models.TickerPrice, err error)) {
	q.onError = fn
}

// Start launches the background drain loop.
func (q *PriceWriteQueue) Start() {
	go q.run()
}

// Push appends records to the queue without blocking on storage.
func (q *PriceWriteQueue) Push(records ...models.TickerPrice) {
	q.mu.Lock()
	q.pending = append(q.pending, records...)
	q.mu.Unlock()
}

// Len returns the number of records waiting to be written.
func (q *PriceWriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain synchronously writes everything still queued, keeping the pacing
// interval between batches. A full-history refresh leaves most of its
// records queued when the fetches finish, so the end-of-pass drain has to
// stay inside the same write budget as the background loop.
func (q *PriceWriteQueue) Drain(ctx context.Context) error {
	for {
		batch := q.nextBatch()
		if len(batch) == 0 {
			return nil
		}
		if err := q.writer.UpsertBatch(ctx, batch); err != nil {
			q.reportFailure(batch, err)
			return err
		}
		if q.Len() == 0 {
			return nil
		}

		timer := time.NewTimer(q.pacing)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Flush drains everything still queued back to back, without pacing.
// Shutdown only: anywhere else, Drain keeps the store inside its write
// budget.
func (q *PriceWriteQueue) Flush(ctx context.Context) error {
	for {
		batch := q.nextBatch()
		if len(batch) == 0 {
			return nil
		}
		if err := q.writer.UpsertBatch(ctx, batch); err != nil {
			q.reportFailure(batch, err)
			return err
		}
	}
}

// Stop halts the drain loop. Queued records stay queued; call Flush first
// if they must reach the store.
func (q *PriceWriteQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stop)
		<-q.done
	})
}

func (q *PriceWriteQueue) run() {
	defer close(q.done)

	ticker := time.NewTicker(q.pacing)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			batch := q.nextBatch()
			if len(batch) == 0 {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := q.writer.UpsertBatch(ctx, batch)
			cancel()

			if err != nil {
				q.reportFailure(batch, err)
			}
		}
	}
}

func (q *PriceWriteQueue) nextBatch() []models.TickerPrice {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	if n == 0 {
		return nil
	}
	if n > q.batchSize {
		n = q.batchSize
	}

	batch := make([]models.TickerPrice, n)
	copy(batch, q.pending[:n])
	q.pending = q.pending[n:]
	return batch
}

func (q *PriceWriteQueue) reportFailure(batch []models.TickerPrice, err error) {
	log.Printf("Price batch write failed, dropping %d records: %v", len(batch), err)
	if q.onError != nil {
		q.onError(batch, err)
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"stock_api_backend/models"
	"stock_api_backend/services"
	"stock_api_backend/services/datafetcher"
)

// Run states for the update pipeline
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Narrow views of the collaborators, so passes can be exercised against
// fakes.
type tickerSource interface {
	FetchUniverse(ctx context.Context) (models.TickerUniverse, error)
}

type fundamentalsSource interface {
	FetchAll(ctx context.Context, index string) (models.FundamentalsSet, error)
}

type heatmapGenerator interface {
	Generate(ctx context.Context, tickers []string) (models.Heatmap, error)
}

type priceSource interface {
	FetchDailyCloses(ctx context.Context, ticker string) ([]models.DailyClose, error)
}

type datasetCache interface {
	Write(ctx context.Context, key string, v interface{}) error
	WaitForWrites()
}

type priceQueue interface {
	Push(records ...models.TickerPrice)
	Drain(ctx context.Context) error
}

type notifier interface {
	Notify(subject, body string)
	NotifyError(subject string, err error)
}

// DataUpdateService runs the acquisition pipeline: ticker universe,
// fundamentals and heatmaps on every pass, full price history on the
// weekly pass. At most one pass runs at a time; triggers that arrive
// while one is running are dropped.
type DataUpdateService struct {
	mu        sync.Mutex
	running   bool
	lastState string
	lastRun   time.Time
	lastError string

	tickers      tickerSource
	fundamentals fundamentalsSource
	heatmaps     heatmapGenerator
	prices       priceSource
	cache        datasetCache
	queue        priceQueue
	notify       notifier
}

// NewDataUpdateService wires the pipeline over its collaborators
func NewDataUpdateService(
	tickers tickerSource,
	fundamentals fundamentalsSource,
	heatmaps heatmapGenerator,
	prices priceSource,
	cache datasetCache,
	queue priceQueue,
	notify notifier,
) *DataUpdateService {
	return &DataUpdateService{
		lastState:    StateIdle,
		tickers:      tickers,
		fundamentals: fundamentals,
		heatmaps:     heatmaps,
		prices:       prices,
		cache:        cache,
		queue:        queue,
		notify:       notify,
	}
}

// TryRun starts a pass in the background unless one is already running.
// Returns false when the trigger was dropped.
func (s *DataUpdateService) TryRun(full bool) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("Update already running, dropping trigger")
		return false
	}
	s.running = true
	s.lastState = StateRunning
	s.mu.Unlock()

	go s.run(full)
	return true
}

// IsRunning reports whether a pass is in flight.
func (s *DataUpdateService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the pipeline state for the admin surface.
func (s *DataUpdateService) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"state": s.lastState,
	}
	if !s.lastRun.IsZero() {
		status["last_run"] = s.lastRun.Format(time.RFC3339)
	}
	if s.lastError != "" {
		status["last_error"] = s.lastError
	}
	return status
}

func (s *DataUpdateService) run(full bool) {
	passName := "light"
	if full {
		passName = "full"
	}

	start := time.Now()
	log.Printf("Starting %s update pass", passName)
	s.notify.Notify(fmt.Sprintf("Data update started (%s pass)", passName), fmt.Sprintf("Started at %s", start.Format(time.RFC3339)))

	err := s.execute(context.Background(), full)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	if err != nil {
		s.lastState = StateFailed
		s.lastError = err.Error()
	} else {
		s.lastState = StateSucceeded
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("%s update pass failed after %s: %v", passName, time.Since(start).Round(time.Second), err)
		s.notify.NotifyError(fmt.Sprintf("Data update failed (%s pass)", passName), err)
		return
	}

	log.Printf("%s update pass finished in %s", passName, time.Since(start).Round(time.Second))
	s.notify.Notify(fmt.Sprintf("Data update finished (%s pass)", passName), fmt.Sprintf("Took %s", time.Since(start).Round(time.Second)))
}

// execute runs the phases in order. Each phase's cache write settles
// before the next phase starts, so later phases read what earlier phases
// wrote. The first failing phase aborts the rest.
func (s *DataUpdateService) execute(ctx context.Context, full bool) error {
	universe, err := s.tickers.FetchUniverse(ctx)
	if err != nil {
		return fmt.Errorf("ticker phase failed: %w", err)
	}
	if err := s.cache.Write(ctx, services.CacheKeyTickers, universe); err != nil {
		return fmt.Errorf("ticker phase failed: %w", err)
	}
	s.cache.WaitForWrites()

	if full {
		if err := s.refreshPrices(ctx, universe[datafetcher.HeatmapIndex]); err != nil {
			return fmt.Errorf("price phase failed: %w", err)
		}
	}

	fundamentals, err := s.fundamentals.FetchAll(ctx, datafetcher.HeatmapIndex)
	if err != nil {
		return fmt.Errorf("fundamentals phase failed: %w", err)
	}
	if err := s.cache.Write(ctx, services.CacheKeyFundamentals, fundamentals); err != nil {
		return fmt.Errorf("fundamentals phase failed: %w", err)
	}
	s.cache.WaitForWrites()

	heatmap, err := s.heatmaps.Generate(ctx, universe[datafetcher.HeatmapIndex])
	if err != nil {
		return fmt.Errorf("heatmap phase failed: %w", err)
	}
	if err := s.cache.Write(ctx, services.CacheKeyHeatmaps, heatmap); err != nil {
		return fmt.Errorf("heatmap phase failed: %w", err)
	}
	s.cache.WaitForWrites()

	return nil
}

// refreshPrices fetches the full close series for every ticker and queues
// the records for the paced writer. A rejected ticker is skipped; a
// throttled fetch has already exhausted its retries and aborts the phase.
// The queue is drained, still paced, before the phase completes so
// heatmaps see the data.
func (s *DataUpdateService) refreshPrices(ctx context.Context, tickers []string) error {
	for _, ticker := range tickers {
		closes, err := s.prices.FetchDailyCloses(ctx, ticker)
		if err != nil {
			var badRequest *datafetcher.DownstreamBadRequestError
			if errors.As(err, &badRequest) {
				log.Printf("Skipping prices for %s: %v", ticker, err)
				continue
			}
			return err
		}

		symbol := datafetcher.FormatLondonTicker(ticker)
		records := make([]models.TickerPrice, len(closes))
		for i, c := range closes {
			records[i] = models.TickerPrice{Ticker: symbol, Date: c.Date, Close: c.Close}
		}
		s.queue.Push(records...)
	}

	return s.queue.Drain(ctx)
}

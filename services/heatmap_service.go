package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"stock_api_backend/models"
	"stock_api_backend/services/datafetcher"

	"github.com/shopspring/decimal"
)

// maxDateWalkback bounds how far back the resolver probes for a trading
// day with data. Seven days always spans a weekend plus holidays.
const maxDateWalkback = 7

// ErrNoPriceData is returned when no date within the walkback window has
// any recorded close.
var ErrNoPriceData = errors.New("no price data found within walkback window")

// DataQualityError flags a heatmap period that resolved with too few
// entries to be trustworthy.
type DataQualityError struct {
	Period  string
	Entries int
	Minimum int
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("heatmap for %s has %d entries, need at least %d", e.Period, e.Entries, e.Minimum)
}

// HeatmapPriceSource is the slice of the price store the resolver reads.
type HeatmapPriceSource interface {
	HasDataOn(ctx context.Context, ticker, date string) (bool, error)
	ClosesOn(ctx context.Context, tickers []string, date string) (map[string]decimal.Decimal, error)
}

// HeatmapService derives percentage-change heatmaps from the stored close
// series.
type HeatmapService struct {
	prices     HeatmapPriceSource
	minEntries int
	now        func() time.Time
}

// NewHeatmapService creates a heatmap service. minEntries is the smallest
// acceptable result per period before the data is considered broken.
func NewHeatmapService(prices HeatmapPriceSource, minEntries int) *HeatmapService {
	return &HeatmapService{
		prices:     prices,
		minEntries: minEntries,
		now:        time.Now,
	}
}

// Generate builds the heatmap for every supported time period over the
// given tickers. The anchor is the most recent trading day at or before
// yesterday; each period's target is the nearest trading day at or before
// anchor minus the period. Tickers missing a close on either side are
// skipped.
func (hs *HeatmapService) Generate(ctx context.Context, tickers []string) (models.Heatmap, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers to build heatmap from")
	}

	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)

	symbols := make([]string, len(sorted))
	for i, ticker := range sorted {
		symbols[i] = datafetcher.FormatLondonTicker(ticker)
	}

	// One ticker having data is taken to mean the whole day's snapshot
	// was written; the first sorted ticker is the probe.
	probe := symbols[0]

	// Yesterday, since today's closes may not be published yet.
	anchorDate, err := hs.findNearestDateWithData(ctx, probe, hs.now().AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve anchor date: %w", err)
	}

	log.Printf("Building heatmap anchored on %s for %d tickers", anchorDate, len(symbols))

	anchorDay, err := time.Parse(models.DateLayout, anchorDate)
	if err != nil {
		return nil, fmt.Errorf("unparseable anchor date %q: %w", anchorDate, err)
	}

	anchorCloses, err := hs.prices.ClosesOn(ctx, symbols, anchorDate)
	if err != nil {
		return nil, err
	}

	heatmap := models.Heatmap{}

	for period, days := range models.TimePeriodDays {
		targetDate, err := hs.findNearestDateWithData(ctx, probe, anchorDay.AddDate(0, 0, -days))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve target date for %s: %w", period, err)
		}

		targetCloses, err := hs.prices.ClosesOn(ctx, symbols, targetDate)
		if err != nil {
			return nil, err
		}

		entries := make([]models.HeatmapEntry, 0, len(sorted))
		for i, ticker := range sorted {
			anchor, haveAnchor := anchorCloses[symbols[i]]
			target, haveTarget := targetCloses[symbols[i]]
			if !haveAnchor || !haveTarget || target.IsZero() {
				continue
			}

			change, _ := anchor.Div(target).Mul(decimal.NewFromInt(100)).Sub(decimal.NewFromInt(100)).Float64()
			entries = append(entries, models.HeatmapEntry{Ticker: ticker, Change: change})
		}

		if len(entries) < hs.minEntries {
			return nil, &DataQualityError{Period: period, Entries: len(entries), Minimum: hs.minEntries}
		}

		log.Printf("Heatmap %s: %s -> %s, %d entries", period, targetDate, anchorDate, len(entries))
		heatmap[period] = entries
	}

	return heatmap, nil
}

// findNearestDateWithData walks back day by day from the given date until
// the probe ticker has a recorded close.
func (hs *HeatmapService) findNearestDateWithData(ctx context.Context, probe string, from time.Time) (string, error) {
	for i := 0; i < maxDateWalkback; i++ {
		date := from.AddDate(0, 0, -i).Format(models.DateLayout)

		ok, err := hs.prices.HasDataOn(ctx, probe, date)
		if err != nil {
			return "", err
		}
		if ok {
			return date, nil
		}
	}

	return "", fmt.Errorf("probing %s from %s: %w", probe, from.Format(models.DateLayout), ErrNoPriceData)
}

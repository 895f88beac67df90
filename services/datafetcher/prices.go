package datafetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"stock_api_backend/models"

	"github.com/shopspring/decimal"
)

const (
	// The free tier allows 5 calls per minute; 14s spacing stays inside it.
	minWaitBetweenPriceCalls = 14 * time.Second
	// The daily quota resets once a day, so a throttled fetch waits a day.
	priceRetryWait     = 24 * time.Hour
	priceRetryAttempts = 3
)

// PriceFetcher pulls full daily close series from the AlphaVantage-style
// price API. All calls share one limiter so the minimum spacing holds
// across concurrent use.
type PriceFetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *RateLimiter
	retrier    *RetryExecutor
	daysLimit  int
}

// NewPriceFetcher creates a price fetcher. daysLimit > 0 trims each series
// to its most recent N days; 0 keeps the full history.
func NewPriceFetcher(baseURL, apiKey string, daysLimit int) *PriceFetcher {
	return &PriceFetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: NewRateLimiter(minWaitBetweenPriceCalls),
		retrier: &RetryExecutor{
			MaxAttempts: priceRetryAttempts,
			WaitTime:    priceRetryWait,
			ShouldRetry: IsRateLimited,
		},
		daysLimit: daysLimit,
	}
}

// dailySeriesResponse mirrors the provider's payload. The three notice
// fields are mutually exclusive with the series.
type dailySeriesResponse struct {
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	Series       map[string]dailySeriesEntry `json:"Time Series (Daily)"`
}

type dailySeriesEntry struct {
	Close string `json:"4. close"`
}

// FetchDailyCloses fetches the daily close series for a ticker, most
// recent day first. The ticker is stored and queried in its London form
// (GAW -> GAW.L). A throttled call is retried on the provider's daily
// quota schedule; a rejected request fails immediately.
func (pf *PriceFetcher) FetchDailyCloses(ctx context.Context, ticker string) ([]models.DailyClose, error) {
	symbol := FormatLondonTicker(ticker)

	var closes []models.DailyClose

	err := pf.retrier.Execute(ctx, func(ctx context.Context) error {
		if err := pf.limiter.Wait(ctx); err != nil {
			return err
		}

		log.Printf("Fetching price data for ticker: %s", symbol)

		series, err := pf.fetchSeries(ctx, symbol)
		if err != nil {
			return err
		}

		// Stamp after completion so slow responses still keep the spacing.
		pf.limiter.RecordCall()

		closes, err = parseSeries(symbol, series)
		return err
	})
	if err != nil {
		return nil, err
	}

	if pf.daysLimit > 0 && len(closes) > pf.daysLimit {
		closes = closes[:pf.daysLimit]
	}

	log.Printf("Fetched %d price entries for ticker: %s", len(closes), symbol)
	return closes, nil
}

func (pf *PriceFetcher) fetchSeries(ctx context.Context, symbol string) (map[string]dailySeriesEntry, error) {
	apiURL := fmt.Sprintf("%s/query?function=TIME_SERIES_DAILY&outputsize=full&apikey=%s&symbol=%s",
		pf.baseURL, url.QueryEscape(pf.apiKey), url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := pf.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request failed for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	var payload dailySeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode price response for %s: %w", symbol, err)
	}

	if payload.ErrorMessage != "" {
		return nil, &DownstreamBadRequestError{Ticker: symbol, Message: payload.ErrorMessage}
	}
	if payload.Note != "" || payload.Information != "" {
		note := payload.Note
		if note == "" {
			note = payload.Information
		}
		return nil, &DownstreamRateLimitError{Ticker: symbol, Note: note}
	}
	if payload.Series == nil {
		return nil, &DownstreamBadRequestError{Ticker: symbol, Message: "response contained no daily series"}
	}

	return payload.Series, nil
}

func parseSeries(symbol string, series map[string]dailySeriesEntry) ([]models.DailyClose, error) {
	closes := make([]models.DailyClose, 0, len(series))
	for date, entry := range series {
		price, err := decimal.NewFromString(entry.Close)
		if err != nil {
			return nil, fmt.Errorf("unparseable close %q for %s on %s: %w", entry.Close, symbol, date, err)
		}
		closes = append(closes, models.DailyClose{Date: date, Close: price})
	}

	// Most recent first; dates are YYYY-MM-DD so string order is date order.
	sort.Slice(closes, func(i, j int) bool {
		return closes[i].Date > closes[j].Date
	})

	return closes, nil
}

// FormatLondonTicker normalizes a scraped ticker to the provider's London
// listing form: GAW -> GAW.L, BT. -> BT.L.
func FormatLondonTicker(ticker string) string {
	if strings.HasSuffix(ticker, ".") {
		return ticker + "L"
	}
	return ticker + ".L"
}

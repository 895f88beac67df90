package datafetcher

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"stock_api_backend/models"

	"github.com/PuerkitoBio/goquery"
)

// paginationSelector marks the "last page" link on the constituents table.
const paginationSelector = ".page-last"

// TickerFetcher scrapes index constituent tables into ticker lists.
type TickerFetcher struct {
	httpClient *http.Client
}

// NewTickerFetcher creates a new ticker fetcher
func NewTickerFetcher() *TickerFetcher {
	return &TickerFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchUniverse fetches the constituents of every supported index.
func (tf *TickerFetcher) FetchUniverse(ctx context.Context) (models.TickerUniverse, error) {
	universe := models.TickerUniverse{}

	for _, name := range SupportedIndexes() {
		tickers, err := tf.FetchIndexTickers(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tickers for %s: %w", name, err)
		}
		universe[name] = tickers
	}

	return universe, nil
}

// FetchIndexTickers fetches the sorted ticker list for one index. Pages of
// the constituents table are fetched concurrently.
func (tf *TickerFetcher) FetchIndexTickers(ctx context.Context, index string) ([]string, error) {
	cfg, err := ConfigForIndex(index)
	if err != nil {
		return nil, err
	}

	log.Printf("Fetching tickers for index: %s", index)

	numPages, err := tf.pageCount(ctx, cfg.TickersURL)
	if err != nil {
		return nil, err
	}

	log.Printf("Index %s has %d constituent pages", index, numPages)

	pages := make([][]string, numPages)
	errs := make([]error, numPages)

	var wg sync.WaitGroup
	for i := 0; i < numPages; i++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			pageURL := fmt.Sprintf("%s?page=%d", cfg.TickersURL, page+1)
			pages[page], errs[page] = tf.fetchPageTickers(ctx, pageURL)
		}(i)
	}
	wg.Wait()

	var tickers []string
	for i := 0; i < numPages; i++ {
		if errs[i] != nil {
			return nil, fmt.Errorf("failed to fetch page %d for %s: %w", i+1, index, errs[i])
		}
		tickers = append(tickers, pages[i]...)
	}

	sort.Strings(tickers)
	return tickers, nil
}

// pageCount reads the page number out of the "last page" link.
func (tf *TickerFetcher) pageCount(ctx context.Context, tableURL string) (int, error) {
	doc, err := tf.fetchDocument(ctx, tableURL)
	if err != nil {
		return 0, err
	}

	href, ok := doc.Find(paginationSelector).First().Attr("href")
	if !ok {
		return 0, fmt.Errorf("no pagination link found on %s", tableURL)
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return 0, fmt.Errorf("unparseable pagination link %q: %w", href, err)
	}

	numPages, err := strconv.Atoi(parsed.Query().Get("page"))
	if err != nil {
		return 0, fmt.Errorf("pagination link %q has no page number: %w", href, err)
	}

	return numPages, nil
}

// fetchPageTickers parses one page of the constituents table. The ticker
// is the first link text in each row.
func (tf *TickerFetcher) fetchPageTickers(ctx context.Context, pageURL string) ([]string, error) {
	doc, err := tf.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var tickers []string
	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		ticker := row.Find("a").First().Text()
		if ticker != "" {
			tickers = append(tickers, ticker)
		}
	})

	return tickers, nil
}

func (tf *TickerFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}

	resp, err := tf.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	return doc, nil
}

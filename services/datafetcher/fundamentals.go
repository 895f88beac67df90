package datafetcher

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"stock_api_backend/models"

	"github.com/PuerkitoBio/goquery"
)

const (
	simultaneousFundamentalsFetches = 5
	waitBetweenFundamentalsFetches  = 3 * time.Second

	// The share's ticker is carried in its fundamentals page URL.
	shareNameURLParam = "shareprice"
)

// Row titles in the fundamentals table. Revenue is sometimes reported as
// Turnover depending on the company.
var (
	revenueRowTitles         = []string{"Revenue", "Turnover"}
	preTaxProfitRowTitles    = []string{"Pre Tax Profit"}
	operatingProfitRowTitles = []string{"Operating Profit / Loss"}
)

// FundamentalsFetcher scrapes per-share fundamentals pages for an index.
type FundamentalsFetcher struct {
	httpClient *http.Client
}

// NewFundamentalsFetcher creates a new fundamentals fetcher
func NewFundamentalsFetcher() *FundamentalsFetcher {
	return &FundamentalsFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchAll scrapes the fundamentals for every constituent of an index. A
// bounded worker pool fetches the per-share pages, pausing between fetches
// to stay polite. Shares that fail to parse are logged and skipped.
func (ff *FundamentalsFetcher) FetchAll(ctx context.Context, index string) (models.FundamentalsSet, error) {
	links, err := ff.fetchFundamentalsLinks(ctx, index)
	if err != nil {
		return nil, err
	}

	log.Printf("Fetching fundamentals for %d shares in %s", len(links), index)

	jobs := make(chan string)
	results := models.FundamentalsSet{}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < simultaneousFundamentalsFetches; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for link := range jobs {
				select {
				case <-ctx.Done():
					return
				case <-time.After(waitBetweenFundamentalsFetches):
				}

				fundamentals, err := ff.fetchShare(ctx, link)
				if err != nil {
					log.Printf("Skipping fundamentals for %s: %v", link, err)
					continue
				}

				mu.Lock()
				results[fundamentals.Ticker] = fundamentals
				mu.Unlock()
			}
		}()
	}

feed:
	for _, link := range links {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- link:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Printf("Fetched fundamentals for %d of %d shares", len(results), len(links))
	return results, nil
}

// fetchFundamentalsLinks scrapes the constituents page for per-share
// fundamentals links.
func (ff *FundamentalsFetcher) fetchFundamentalsLinks(ctx context.Context, index string) ([]string, error) {
	cfg, err := ConfigForIndex(index)
	if err != nil {
		return nil, err
	}

	doc, err := ff.fetchDocument(ctx, cfg.ConstituentsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch constituents for %s: %w", index, err)
	}

	var links []string
	doc.Find(".sp-constituents tr > td:nth-child(1) a:nth-child(2)").Each(func(_ int, link *goquery.Selection) {
		if href, ok := link.Attr("href"); ok {
			links = append(links, strings.Replace(href, "SharePrice.asp", "share-fundamentals.asp", 1))
		}
	})

	if len(links) == 0 {
		return nil, fmt.Errorf("no constituent links found for %s", index)
	}

	return links, nil
}

// fetchShare scrapes one share's fundamentals page.
func (ff *FundamentalsFetcher) fetchShare(ctx context.Context, link string) (models.Fundamentals, error) {
	ticker, err := tickerFromLink(link)
	if err != nil {
		return models.Fundamentals{}, err
	}

	doc, err := ff.fetchDocument(ctx, link)
	if err != nil {
		return models.Fundamentals{}, err
	}

	return models.Fundamentals{
		Ticker:          ticker,
		DataSourceLink:  link,
		FollowUpLink:    fmt.Sprintf("https://www.google.com/finance/quote/%s:LON?window=1Y", ticker),
		Revenue:         attributeSeries(doc, revenueRowTitles),
		PreTaxProfit:    attributeSeries(doc, preTaxProfitRowTitles),
		OperatingProfit: attributeSeries(doc, operatingProfitRowTitles),
	}, nil
}

// attributeSeries pulls the yearly figures out of the fundamentals table
// row whose first cell matches one of rowTitles. The page lists the most
// recent year first, so the series is reversed to chronological order.
func attributeSeries(doc *goquery.Document, rowTitles []string) []int64 {
	var values []int64

	doc.Find(".sp-fundamentals__table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children().Filter("td")
		title := cells.First().Text()

		matched := false
		for _, want := range rowTitles {
			if title == want {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		cells.Each(func(i int, cell *goquery.Selection) {
			if i == 0 {
				return
			}
			value, err := parseFigure(cell.Text())
			if err != nil {
				log.Printf("Skipping unparseable figure %q in row %q: %v", cell.Text(), title, err)
				return
			}
			values = append(values, value)
		})
	})

	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}

	return values
}

// parseFigure parses one reported figure. Negatives are parenthesised,
// thousands are comma-separated, and fractions are dropped.
func parseFigure(raw string) (int64, error) {
	negative := strings.Contains(raw, "(")

	cleaned := strings.NewReplacer(",", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	if i := strings.IndexByte(cleaned, '.'); i >= 0 {
		cleaned = cleaned[:i]
	}

	value, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, err
	}

	if negative {
		value = -value
	}
	return value, nil
}

func tickerFromLink(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("unparseable fundamentals link %q: %w", link, err)
	}

	ticker := parsed.Query().Get(shareNameURLParam)
	if ticker == "" {
		return "", fmt.Errorf("fundamentals link %q has no %s parameter", link, shareNameURLParam)
	}

	return ticker, nil
}

func (ff *FundamentalsFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}

	resp, err := ff.httpClient.Do(req)
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

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"stock_api_backend/models"
	"stock_api_backend/services"
	"stock_api_backend/services/datafetcher"

	"github.com/gin-gonic/gin"
)

// MarketDataController serves the cached datasets and the stored price
// series. It never fetches; an empty cache means the data is not
// currently available.
type MarketDataController struct {
	cache  *services.CacheService
	prices *services.PriceStore
}

// NewMarketDataController creates a new market data controller
func NewMarketDataController(cache *services.CacheService, prices *services.PriceStore) *MarketDataController {
	return &MarketDataController{
		cache:  cache,
		prices: prices,
	}
}

// GetIndexes returns the supported index names
// GET /api/v1/indexes
func (mc *MarketDataController) GetIndexes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": datafetcher.SupportedIndexes()})
}

// GetIndexTickers returns the cached constituents of an index
// GET /api/v1/tickers/:index
func (mc *MarketDataController) GetIndexTickers(c *gin.Context) {
	index := c.Param("index")
	if !datafetcher.IsSupportedIndex(index) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown index: " + index})
		return
	}

	universe, ok := mc.readUniverse(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"index": index,
		"data":  universe[index],
	})
}

// GetFundamentals returns the cached fundamentals, optionally for one ticker
// GET /api/v1/fundamentals?ticker=GAW
func (mc *MarketDataController) GetFundamentals(c *gin.Context) {
	var fundamentals models.FundamentalsSet
	if err := mc.cache.ReadInto(c.Request.Context(), services.CacheKeyFundamentals, &fundamentals); err != nil {
		mc.cacheError(c, err)
		return
	}

	if ticker := c.Query("ticker"); ticker != "" {
		entry, ok := fundamentals[ticker]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "No fundamentals for ticker: " + ticker})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": entry})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": fundamentals})
}

// GetHeatmap returns the cached heatmap filtered to an index
// GET /api/v1/heatmaps/:index
func (mc *MarketDataController) GetHeatmap(c *gin.Context) {
	heatmap, ok := mc.readIndexHeatmap(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"index": c.Param("index"),
		"data":  heatmap,
	})
}

// GetHeatmapForPeriod returns one time period of the heatmap for an index
// GET /api/v1/heatmaps/:index/:timePeriod
func (mc *MarketDataController) GetHeatmapForPeriod(c *gin.Context) {
	period := c.Param("timePeriod")
	if _, ok := models.TimePeriodDays[period]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown time period: " + period})
		return
	}

	heatmap, ok := mc.readIndexHeatmap(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"index":       c.Param("index"),
		"time_period": period,
		"data":        heatmap[period],
	})
}

// GetTickerPrices returns the stored closes for a ticker, newest first
// GET /api/v1/prices/:ticker?days=30
func (mc *MarketDataController) GetTickerPrices(c *gin.Context) {
	ticker := c.Param("ticker")

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}

	symbol := datafetcher.FormatLondonTicker(ticker)
	rows, err := mc.prices.RecentCloses(c.Request.Context(), symbol, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker": symbol,
		"data":   rows,
	})
}

// readIndexHeatmap loads the cached heatmap and trims every period to the
// constituents of the requested index. The heatmap is built over the
// all-share universe, so any supported index is a subset.
func (mc *MarketDataController) readIndexHeatmap(c *gin.Context) (models.Heatmap, bool) {
	index := c.Param("index")
	if !datafetcher.IsSupportedIndex(index) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown index: " + index})
		return nil, false
	}

	universe, ok := mc.readUniverse(c)
	if !ok {
		return nil, false
	}

	var heatmap models.Heatmap
	if err := mc.cache.ReadInto(c.Request.Context(), services.CacheKeyHeatmaps, &heatmap); err != nil {
		mc.cacheError(c, err)
		return nil, false
	}

	allowed := make(map[string]bool, len(universe[index]))
	for _, ticker := range universe[index] {
		allowed[ticker] = true
	}

	filtered := models.Heatmap{}
	for period, entries := range heatmap {
		kept := make([]models.HeatmapEntry, 0, len(entries))
		for _, entry := range entries {
			if allowed[entry.Ticker] {
				kept = append(kept, entry)
			}
		}
		filtered[period] = kept
	}

	return filtered, true
}

func (mc *MarketDataController) readUniverse(c *gin.Context) (models.TickerUniverse, bool) {
	var universe models.TickerUniverse
	if err := mc.cache.ReadInto(c.Request.Context(), services.CacheKeyTickers, &universe); err != nil {
		mc.cacheError(c, err)
		return nil, false
	}
	return universe, true
}

func (mc *MarketDataController) cacheError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrCacheMiss) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Data is not currently available"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cached data"})
}

package services

import (
	"context"
	"fmt"
	"log"

	"stock_api_backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceStore is the gorm repository for the daily close time series.
type PriceStore struct {
	db *gorm.DB
}

// Global price store instance
var GlobalPriceStore *PriceStore

// InitPriceStore initializes the global price store
func InitPriceStore(db *gorm.DB) {
	GlobalPriceStore = NewPriceStore(db)
	log.Println("Price store initialized")
}

// NewPriceStore creates a price store over the given database
func NewPriceStore(db *gorm.DB) *PriceStore {
	return &PriceStore{db: db}
}

// UpsertBatch writes a batch of price records. Conflicts on the
// (ticker, date) key update the close in place, so re-delivering a batch
// is harmless.
func (ps *PriceStore) UpsertBatch(ctx context.Context, records []models.TickerPrice) error {
	if len(records) == 0 {
		return nil
	}

	err := ps.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"close", "updated_at"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d price records: %w", len(records), err)
	}

	return nil
}

// HasDataOn reports whether a ticker has a close recorded for a date.
func (ps *PriceStore) HasDataOn(ctx context.Context, ticker, date string) (bool, error) {
	var count int64
	err := ps.db.WithContext(ctx).Model(&models.TickerPrice{}).
		Where("ticker = ? AND date = ?", ticker, date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check price data for %s on %s: %w", ticker, date, err)
	}
	return count > 0, nil
}

// ClosesOn returns the closes for every given ticker on a date. Tickers
// without a record that day are simply absent from the result.
func (ps *PriceStore) ClosesOn(ctx context.Context, tickers []string, date string) (map[string]decimal.Decimal, error) {
	var rows []models.TickerPrice
	err := ps.db.WithContext(ctx).
		Where("ticker IN ? AND date = ?", tickers, date).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load closes for %s: %w", date, err)
	}

	closes := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		closes[row.Ticker] = row.Close
	}
	return closes, nil
}

// RecentCloses returns the most recent closes for a ticker, newest first.
func (ps *PriceStore) RecentCloses(ctx context.Context, ticker string, days int) ([]models.TickerPrice, error) {
	var rows []models.TickerPrice
	err := ps.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("date DESC").
		Limit(days).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent closes for %s: %w", ticker, err)
	}
	return rows, nil
}

// CountForTicker returns how many closes are stored for a ticker.
func (ps *PriceStore) CountForTicker(ctx context.Context, ticker string) (int64, error) {
	var count int64
	err := ps.db.WithContext(ctx).Model(&models.TickerPrice{}).
		Where("ticker = ?", ticker).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count closes for %s: %w", ticker, err)
	}
	return count, nil
}

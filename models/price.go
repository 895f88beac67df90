package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DateLayout is the canonical day format used across the price store and
// the daily cache keys.
const DateLayout = "2006-01-02"

// TickerPrice is one closing price for one ticker on one day. The
// (ticker, date) pair is unique so re-writing the same day is an upsert,
// not a duplicate.
type TickerPrice struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Ticker    string          `gorm:"uniqueIndex:idx_ticker_date;not null" json:"ticker"`
	Date      string          `gorm:"uniqueIndex:idx_ticker_date;not null" json:"date"` // YYYY-MM-DD
	Close     decimal.Decimal `gorm:"type:decimal(15,4)" json:"close"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DailyClose is a date/close pair as returned by the downstream price API,
// before it is persisted as TickerPrice rows.
type DailyClose struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// MigratePriceModels runs database migrations for the price store
func MigratePriceModels(db *gorm.DB) error {
	return db.AutoMigrate(&TickerPrice{})
}

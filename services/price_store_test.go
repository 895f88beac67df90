package services

import (
	"context"
	"testing"

	"stock_api_backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestPriceStore(t *testing.T) *PriceStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigratePriceModels(db))

	return NewPriceStore(db)
}

func price(ticker, date, close string) models.TickerPrice {
	return models.TickerPrice{
		Ticker: ticker,
		Date:   date,
		Close:  decimal.RequireFromString(close),
	}
}

func TestUpsertBatchInsertsRecords(t *testing.T) {
	store := newTestPriceStore(t)
	ctx := context.Background()

	err := store.UpsertBatch(ctx, []models.TickerPrice{
		price("GAW.L", "2026-08-28", "103.25"),
		price("GAW.L", "2026-08-27", "101.00"),
		price("BARC.L", "2026-08-28", "2.15"),
	})
	require.NoError(t, err)

	count, err := store.CountForTicker(ctx, "GAW.L")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpsertBatchIsIdempotentOnTickerAndDate(t *testing.T) {
	store := newTestPriceStore(t)
	ctx := context.Background()

	first := []models.TickerPrice{price("GAW.L", "2026-08-28", "103.25")}
	require.NoError(t, store.UpsertBatch(ctx, first))

	// Redelivering the same day updates the close in place.
	require.NoError(t, store.UpsertBatch(ctx, []models.TickerPrice{
		price("GAW.L", "2026-08-28", "104.50"),
	}))

	count, err := store.CountForTicker(ctx, "GAW.L")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	closes, err := store.ClosesOn(ctx, []string{"GAW.L"}, "2026-08-28")
	require.NoError(t, err)
	assert.True(t, closes["GAW.L"].Equal(decimal.RequireFromString("104.50")))
}

func TestUpsertBatchEmptyIsNoOp(t *testing.T) {
	store := newTestPriceStore(t)
	assert.NoError(t, store.UpsertBatch(context.Background(), nil))
}

func TestHasDataOn(t *testing.T) {
	store := newTestPriceStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []models.TickerPrice{
		price("GAW.L", "2026-08-28", "103.25"),
	}))

	ok, err := store.HasDataOn(ctx, "GAW.L", "2026-08-28")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasDataOn(ctx, "GAW.L", "2026-08-29")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.HasDataOn(ctx, "BARC.L", "2026-08-28")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClosesOnOmitsTickersWithoutData(t *testing.T) {
	store := newTestPriceStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []models.TickerPrice{
		price("GAW.L", "2026-08-28", "103.25"),
		price("BARC.L", "2026-08-28", "2.15"),
		price("BARC.L", "2026-08-27", "2.10"),
	}))

	closes, err := store.ClosesOn(ctx, []string{"GAW.L", "BARC.L", "III.L"}, "2026-08-28")
	require.NoError(t, err)

	require.Len(t, closes, 2)
	assert.True(t, closes["GAW.L"].Equal(decimal.RequireFromString("103.25")))
	assert.True(t, closes["BARC.L"].Equal(decimal.RequireFromString("2.15")))
	assert.NotContains(t, closes, "III.L")
}

func TestRecentClosesNewestFirstAndLimited(t *testing.T) {
	store := newTestPriceStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []models.TickerPrice{
		price("GAW.L", "2026-08-25", "100.00"),
		price("GAW.L", "2026-08-26", "101.00"),
		price("GAW.L", "2026-08-27", "102.00"),
		price("GAW.L", "2026-08-28", "103.00"),
		price("BARC.L", "2026-08-28", "2.15"),
	}))

	rows, err := store.RecentCloses(ctx, "GAW.L", 3)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "2026-08-28", rows[0].Date)
	assert.Equal(t, "2026-08-27", rows[1].Date)
	assert.Equal(t, "2026-08-26", rows[2].Date)
}

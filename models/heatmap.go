package models

// Time periods a heatmap is computed over, with their lookback in days.
const (
	PeriodOneMonth   = "ONE_MONTH"
	PeriodThreeMonth = "THREE_MONTH"
	PeriodSixMonth   = "SIX_MONTH"
	PeriodOneYear    = "ONE_YEAR"
	PeriodTwoYear    = "TWO_YEAR"
)

// TimePeriodDays maps each supported period to its nominal day count.
var TimePeriodDays = map[string]int{
	PeriodOneMonth:   30,
	PeriodThreeMonth: 90,
	PeriodSixMonth:   180,
	PeriodOneYear:    360,
	PeriodTwoYear:    720,
}

// HeatmapEntry is one ticker's percentage change over a period.
type HeatmapEntry struct {
	Ticker string  `json:"ticker"`
	Change float64 `json:"change"`
}

// Heatmap maps a time period to the entries computed for it.
type Heatmap map[string][]HeatmapEntry

// TickerUniverse maps an index name to its sorted constituent tickers.
type TickerUniverse map[string][]string

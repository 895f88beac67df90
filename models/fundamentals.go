package models

// Fundamentals holds the scraped yearly figures for one share. Figures are
// whole millions, sign-corrected, oldest year first.
type Fundamentals struct {
	Ticker          string  `json:"ticker"`
	DataSourceLink  string  `json:"data_source_link"`
	FollowUpLink    string  `json:"follow_up_link"`
	Revenue         []int64 `json:"revenue"`
	PreTaxProfit    []int64 `json:"pre_tax_profit"`
	OperatingProfit []int64 `json:"operating_profit"`
}

// FundamentalsSet is the cached dataset: every scraped share keyed by ticker.
type FundamentalsSet map[string]Fundamentals

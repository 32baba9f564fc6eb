package model

import "github.com/guregu/null/v5"

// TickerInfo is descriptive metadata for an instrument.
type TickerInfo struct {
	Ticker        string      `json:"ticker"`
	ShortName     null.String `json:"short_name"`
	LongName      null.String `json:"long_name"`
	Sector        null.String `json:"sector"`
	Currency      string      `json:"currency"`
	Exchange      string      `json:"exchange"`
	Price         float64     `json:"price"`
	PreviousClose float64     `json:"previous_close"`
	Volume        int64       `json:"volume"`
	MarketCap     null.Float  `json:"market_cap"`
}

// DisplayName prefers the short name over the long one.
func (i TickerInfo) DisplayName() null.String {
	if i.ShortName.Valid && i.ShortName.String != "" {
		return i.ShortName
	}
	return i.LongName
}

// Quote is the current price snapshot served to clients.
type Quote struct {
	Ticker    string      `json:"ticker"`
	Name      null.String `json:"name"`
	Price     float64     `json:"price"`
	ChangePct float64     `json:"change_pct"`
	Volume    int64       `json:"volume"`
	MarketCap null.Float  `json:"market_cap"`
}

// SearchResult is one hit from a ticker search.
type SearchResult struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}

// IndicatorSnapshot is an indicator record tagged with its ticker, as served
// by the API and pushed to watchlist subscribers.
type IndicatorSnapshot struct {
	Ticker string `json:"ticker"`
	IndicatorRecord
}

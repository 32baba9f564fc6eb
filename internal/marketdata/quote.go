package marketdata

import (
	"math"

	"stockdash/internal/model"
)

// BuildQuote derives the client-facing quote from ticker metadata.
// ChangePct is relative to the previous close, rounded to 2 decimals, and 0
// when the previous close is unknown.
func BuildQuote(info model.TickerInfo) model.Quote {
	var change float64
	if info.PreviousClose != 0 {
		change = (info.Price - info.PreviousClose) / info.PreviousClose * 100
		change = math.Round(change*100) / 100
		if change == 0 {
			change = 0 // drop negative zero
		}
	}
	return model.Quote{
		Ticker:    info.Ticker,
		Name:      info.DisplayName(),
		Price:     info.Price,
		ChangePct: change,
		Volume:    info.Volume,
		MarketCap: info.MarketCap,
	}
}

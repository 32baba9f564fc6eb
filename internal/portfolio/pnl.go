// Package portfolio computes realised profit and loss for closed swing
// trades and aggregates performance statistics.
package portfolio

import (
	"github.com/shopspring/decimal"

	"stockdash/internal/model"
)

// PctPlaces is the precision of percentage figures.
const PctPlaces = 2

// RealizedPnL returns the per-share profit of a trade closed at exit and the
// same figure as a percentage of entry. Long trades profit when exit rises
// above entry; short trades when it falls below. Decimal arithmetic keeps
// prices such as 2750.5 − 2700.1 exact.
func RealizedPnL(dir model.Direction, entry, exit float64) (pnl, pct float64) {
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)

	d := x.Sub(e)
	if dir == model.Short {
		d = e.Sub(x)
	}
	pnl = d.InexactFloat64()
	if e.IsZero() {
		return pnl, 0
	}
	pct = d.Div(e).Mul(decimal.NewFromInt(100)).Round(PctPlaces).InexactFloat64()
	return pnl, pct
}

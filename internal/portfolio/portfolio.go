package portfolio

import (
	"github.com/shopspring/decimal"

	"stockdash/internal/model"
)

// Stats aggregates trade history. Only closed trades with a recorded P/L
// count toward wins, losses and averages; open trades count as positions.
func Stats(trades []model.Trade) model.TradeStats {
	var (
		st     model.TradeStats
		total  = decimal.Zero
		pctSum = decimal.Zero
	)
	for _, t := range trades {
		switch t.Status {
		case model.TradeOpen:
			st.OpenPositions++
			continue
		case model.TradeClosed:
		default:
			continue
		}
		if !t.PnL.Valid {
			continue
		}
		st.TotalTrades++
		p := decimal.NewFromFloat(t.PnL.Float64)
		total = total.Add(p)
		if t.PnLPct.Valid {
			pctSum = pctSum.Add(decimal.NewFromFloat(t.PnLPct.Float64))
		}
		if p.IsPositive() {
			st.Wins++
		} else {
			st.Losses++
		}
	}

	st.TotalPnL = total.Round(2).InexactFloat64()
	if st.TotalTrades > 0 {
		n := decimal.NewFromInt(int64(st.TotalTrades))
		st.WinRate = decimal.NewFromInt(int64(st.Wins)).Div(n).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		st.AvgPnLPct = pctSum.Div(n).Round(PctPlaces).InexactFloat64()
	}
	return st
}

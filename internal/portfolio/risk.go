package portfolio

import (
	"github.com/guregu/null/v5"
	"github.com/shopspring/decimal"

	"stockdash/internal/model"
)

// RiskReward returns the planned reward-to-risk ratio of a trade: distance
// to target over distance to stop, rounded to 2 decimals. It is null unless
// both levels are set on the profitable and losing sides of entry
// respectively.
func RiskReward(dir model.Direction, entry float64, target, stop null.Float) null.Float {
	if !target.Valid || !stop.Valid {
		return null.Float{}
	}
	e := decimal.NewFromFloat(entry)
	reward := decimal.NewFromFloat(target.Float64).Sub(e)
	risk := e.Sub(decimal.NewFromFloat(stop.Float64))
	if dir == model.Short {
		reward, risk = reward.Neg(), risk.Neg()
	}
	if !reward.IsPositive() || !risk.IsPositive() {
		return null.Float{}
	}
	return null.FloatFrom(reward.Div(risk).Round(2).InexactFloat64())
}

package scanner

import (
	"fmt"
	"time"

	"stockdash/internal/model"
	"stockdash/internal/notification"
)

// Alert kinds.
const (
	KindRSIOverbought = "rsi_overbought"
	KindRSIOversold   = "rsi_oversold"
	KindBBUpperBreak  = "bb_upper_break"
	KindBBLowerBreak  = "bb_lower_break"
)

// Thresholds are the RSI levels that trigger alerts.
type Thresholds struct {
	Overbought float64
	Oversold   float64
}

// Evaluate returns the alerts a record triggers. A close on or beyond
// a band reads bb_position >= 1 or <= 0.
func Evaluate(ticker string, rec model.IndicatorRecord, th Thresholds, now time.Time) []notification.Alert {
	var out []notification.Alert
	add := func(kind, title, msg string) {
		out = append(out, notification.Alert{
			Level:   notification.AlertWarning,
			Ticker:  ticker,
			Kind:    kind,
			Title:   title,
			Message: msg,
			Time:    now,
		})
	}

	if rsi, ok := rec.Get(model.KeyRSI14); ok {
		switch {
		case rsi >= th.Overbought:
			add(KindRSIOverbought, "RSI買われすぎ", fmt.Sprintf("RSI(14) %.2f ≥ %.0f", rsi, th.Overbought))
		case rsi <= th.Oversold:
			add(KindRSIOversold, "RSI売られすぎ", fmt.Sprintf("RSI(14) %.2f ≤ %.0f", rsi, th.Oversold))
		}
	}

	if pos, ok := rec.Get(model.KeyBBPosition); ok {
		switch {
		case pos >= 1:
			add(KindBBUpperBreak, "ボリンジャーバンド上限突破", bandMessage(rec, model.KeyBBUpper))
		case pos <= 0:
			add(KindBBLowerBreak, "ボリンジャーバンド下限割れ", bandMessage(rec, model.KeyBBLower))
		}
	}
	return out
}

func bandMessage(rec model.IndicatorRecord, key string) string {
	if v, ok := rec.Get(key); ok {
		return fmt.Sprintf("%s %.2f", key, v)
	}
	return key
}

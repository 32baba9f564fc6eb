// Package indicator computes technical indicators over OHLCV series.
//
// Each recurrence is a small streaming type implementing Indicator: values
// are fed one at a time through Update and the latest result is read with
// Value. The series helpers replay a whole []float64 through a fresh
// instance, and Compute composes them into an indicator record.
package indicator

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Update feeds the next observation and recalculates.
	Update(v float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears accumulated state so the instance can be reused.
	Reset()
}

var (
	_ Indicator = (*SMA)(nil)
	_ Indicator = (*EMA)(nil)
	_ Indicator = (*SMMA)(nil)
	_ Indicator = (*StdDev)(nil)
	_ Indicator = (*RSI)(nil)
	_ Indicator = (*Bollinger)(nil)
	_ Indicator = (*MACD)(nil)
)

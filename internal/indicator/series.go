package indicator

import "math"

// The helpers below replay a whole sequence through a fresh streaming
// indicator. Output has the same length as the input; positions before the
// indicator is ready hold NaN. Inputs are never modified.

// SMASeries returns the simple moving average of values.
func SMASeries(values []float64, period int) []float64 {
	return replay(NewSMA(period), values)
}

// EMASeries returns the SMA-seeded exponential moving average of values.
func EMASeries(values []float64, period int) []float64 {
	return replay(NewEMA(period), values)
}

// RSISeries returns Wilder's RSI of values.
func RSISeries(values []float64, period int) []float64 {
	return replay(NewRSI(period), values)
}

// StdDevSeries returns the rolling population standard deviation of values.
func StdDevSeries(values []float64, period int) []float64 {
	return replay(NewStdDev(period), values)
}

// MACDSeries returns the MACD line, signal and histogram of values.
func MACDSeries(values []float64, fast, slow, signal int) (line, sig, hist []float64) {
	m := NewMACD(fast, slow, signal)
	line = make([]float64, len(values))
	sig = make([]float64, len(values))
	hist = make([]float64, len(values))
	for i, v := range values {
		m.Update(v)
		if !m.Ready() {
			line[i], sig[i], hist[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		line[i], sig[i], hist[i] = m.Value(), m.Signal(), m.Hist()
	}
	return line, sig, hist
}

// BollingerSeries returns the upper, middle and lower bands of values.
func BollingerSeries(values []float64, period int, k float64) (upper, middle, lower []float64) {
	b := NewBollinger(period, k)
	upper = make([]float64, len(values))
	middle = make([]float64, len(values))
	lower = make([]float64, len(values))
	for i, v := range values {
		b.Update(v)
		if !b.Ready() {
			upper[i], middle[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		upper[i], middle[i], lower[i] = b.Upper(), b.Middle(), b.Lower()
	}
	return upper, middle, lower
}

// Last returns the final element of xs, or NaN if xs is empty.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func replay(ind Indicator, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		ind.Update(v)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

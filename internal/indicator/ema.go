package indicator

// EMA calculates Exponential Moving Average.
// O(1) per update with no window storage.
//
// NewEMA seeds the average with the SMA of the first period inputs.
// NewEMAFirstSeed starts from the first input and is ready immediately;
// MACD uses it so the line is defined from the first bar.
type EMA struct {
	period     int
	multiplier float64
	seedFirst  bool
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new SMA-seeded EMA with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// NewEMAFirstSeed creates an EMA seeded from its first input.
func NewEMAFirstSeed(period int) *EMA {
	e := NewEMA(period)
	e.seedFirst = true
	return e
}

func (e *EMA) Update(v float64) {
	e.count++

	if e.seedFirst && e.count == 1 {
		e.current = v
		return
	}

	if !e.seedFirst && e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += v
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA formula: EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (v * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }

func (e *EMA) Ready() bool {
	if e.seedFirst {
		return e.count >= 1
	}
	return e.count >= e.period
}

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

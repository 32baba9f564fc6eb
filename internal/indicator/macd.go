package indicator

// MACD calculates Moving Average Convergence/Divergence.
// line = EMA(fast) − EMA(slow); signal = EMA(line, signal); hist = line − signal.
// All three EMAs are seeded from their first input, so every output is
// defined from the first value onward.
type MACD struct {
	fast, slow, signal *EMA
	line               float64
}

// NewMACD creates a MACD with the given periods (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMAFirstSeed(fast),
		slow:   NewEMAFirstSeed(slow),
		signal: NewEMAFirstSeed(signal),
	}
}

func (m *MACD) Update(v float64) {
	m.fast.Update(v)
	m.slow.Update(v)
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Update(m.line)
}

func (m *MACD) Value() float64  { return m.line }
func (m *MACD) Ready() bool     { return m.slow.Ready() && m.signal.Ready() }
func (m *MACD) Signal() float64 { return m.signal.Value() }
func (m *MACD) Hist() float64   { return m.line - m.signal.Value() }

// Reset clears the state for reuse.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.line = 0
}

package indicator

// Bollinger calculates Bollinger Bands: middle = SMA(period),
// upper/lower = middle ± k·σ with σ the population standard deviation
// of the same window. Value returns the middle band.
type Bollinger struct {
	period int
	k      float64
	sd     *StdDev
	last   float64
}

// NewBollinger creates Bollinger Bands over period values at k deviations.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{
		period: period,
		k:      k,
		sd:     NewStdDev(period),
	}
}

func (b *Bollinger) Update(v float64) {
	b.last = v
	b.sd.Update(v)
}

func (b *Bollinger) Value() float64  { return b.Middle() }
func (b *Bollinger) Ready() bool     { return b.sd.Ready() }
func (b *Bollinger) Middle() float64 { return b.sd.Mean() }
func (b *Bollinger) Upper() float64  { return b.sd.Mean() + b.k*b.sd.Value() }
func (b *Bollinger) Lower() float64  { return b.sd.Mean() - b.k*b.sd.Value() }

// Position returns where the latest value sits inside the bands:
// 0 at the lower band, 1 at the upper band. A close outside the bands
// reads below 0 or above 1. A zero-width band reports 0.5.
func (b *Bollinger) Position() float64 {
	return BandPosition(b.last, b.Lower(), b.Upper())
}

// BandPosition returns (v-lower)/(upper-lower), or 0.5 when the band
// has no width.
func BandPosition(v, lower, upper float64) float64 {
	width := upper - lower
	if !(width > 0) {
		return 0.5
	}
	return (v - lower) / width
}

// Reset clears the state for reuse.
func (b *Bollinger) Reset() {
	b.last = 0
	b.sd.Reset()
}

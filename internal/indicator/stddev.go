package indicator

import "math"

// StdDev calculates the rolling population standard deviation (ddof=0)
// over a fixed window. The variance is taken from deviations around the
// window mean rather than from a running sum of squares, so a window of
// identical values yields exactly zero.
type StdDev struct {
	period  int
	buf     []float64
	idx     int
	count   int
	mean    float64
	current float64
}

// NewStdDev creates a rolling standard deviation with the given window.
func NewStdDev(period int) *StdDev {
	if period < 1 {
		period = 1
	}
	return &StdDev{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *StdDev) Update(v float64) {
	s.buf[s.idx] = v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count < s.period {
		return
	}

	sum := 0.0
	for _, x := range s.buf {
		sum += x
	}
	s.mean = sum / float64(s.period)

	ss := 0.0
	for _, x := range s.buf {
		d := x - s.mean
		ss += d * d
	}
	s.current = math.Sqrt(ss / float64(s.period))
}

func (s *StdDev) Value() float64 { return s.current }
func (s *StdDev) Ready() bool    { return s.count >= s.period }

// Mean returns the mean of the current window.
func (s *StdDev) Mean() float64 { return s.mean }

// Reset clears the state for reuse.
func (s *StdDev) Reset() {
	s.idx = 0
	s.count = 0
	s.mean = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

package indicator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"stockdash/internal/model"
)

// Lookbacks for the indicator record.
const (
	MinBars = 20 // shortest series that produces a record

	RSIPeriod    = 14
	MACDFast     = 12
	MACDSlow     = 26
	MACDSignal   = 9
	BBPeriod     = 20
	BBDeviations = 2.0
	SMAShort     = 20
	SMALong      = 50
	VolumePeriod = 20
)

// ErrMalformedInput is returned when a series cannot be interpreted:
// a non-finite close, a negative or non-finite volume, or timestamps
// that are missing or not strictly ascending.
var ErrMalformedInput = errors.New("indicator: malformed input")

// Compute returns the latest value of every indicator for the series,
// anchored at its last bar. Series shorter than MinBars yield the empty
// record and no error. Values are rounded only here, at output: two
// decimals, three for bb_position.
//
// Compute does not retain or modify s and is safe for concurrent use.
func Compute(s model.Series) (model.IndicatorRecord, error) {
	n := len(s.Bars)
	if n < MinBars {
		return model.IndicatorRecord{}, nil
	}
	if err := Validate(s); err != nil {
		return model.IndicatorRecord{}, err
	}

	closes := s.Closes()
	volumes := s.Volumes()
	lastClose := closes[n-1]

	rec := model.IndicatorRecord{
		Date: s.Bars[n-1].TS.Format(model.DateLayout),
	}

	rec.RSI14 = rounded(Last(RSISeries(closes, RSIPeriod)), 2)

	line, sig, hist := MACDSeries(closes, MACDFast, MACDSlow, MACDSignal)
	rec.MACD = rounded(Last(line), 2)
	rec.MACDSignal = rounded(Last(sig), 2)
	rec.MACDHist = rounded(Last(hist), 2)

	upper, middle, lower := BollingerSeries(closes, BBPeriod, BBDeviations)
	up, mid, lo := Last(upper), Last(middle), Last(lower)
	rec.BBUpper = rounded(up, 2)
	rec.BBMiddle = rounded(mid, 2)
	rec.BBLower = rounded(lo, 2)
	if isFinite(up) && isFinite(lo) {
		rec.BBPosition = rounded(BandPosition(lastClose, lo, up), 3)
	}

	rec.SMA20 = rounded(Last(SMASeries(closes, SMAShort)), 2)
	if n >= SMALong {
		rec.SMA50 = rounded(Last(SMASeries(closes, SMALong)), 2)
	}

	rec.VolumeRatio = rounded(volumeRatio(volumes[n-1], Last(SMASeries(volumes, VolumePeriod))), 2)

	return rec, nil
}

// Validate checks the columns Compute reads.
func Validate(s model.Series) error {
	for i, b := range s.Bars {
		if !isFinite(b.Close) {
			return fmt.Errorf("%w: bar %d: close %v", ErrMalformedInput, i, b.Close)
		}
		if !isFinite(b.Volume) || b.Volume < 0 {
			return fmt.Errorf("%w: bar %d: volume %v", ErrMalformedInput, i, b.Volume)
		}
		if b.TS.IsZero() {
			return fmt.Errorf("%w: bar %d: missing timestamp", ErrMalformedInput, i)
		}
		if i > 0 && !b.TS.After(s.Bars[i-1].TS) {
			return fmt.Errorf("%w: bar %d: timestamp %s not after %s",
				ErrMalformedInput, i, b.TS.Format(time.RFC3339), s.Bars[i-1].TS.Format(time.RFC3339))
		}
	}
	return nil
}

// volumeRatio is last/avg, or 1.0 when the average is not positive.
func volumeRatio(last, avg float64) float64 {
	if !(avg > 0) {
		return 1.0
	}
	return last / avg
}

// rounded returns v rounded to places decimals, or nil when v is not finite.
func rounded(v float64, places int) *float64 {
	if !isFinite(v) {
		return nil
	}
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		r = 0 // drop negative zero
	}
	if !isFinite(r) {
		return nil
	}
	return &r
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package indicator

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"stockdash/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(closes, volumes []float64) model.Series {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		v := 1000.0
		if volumes != nil {
			v = volumes[i]
		}
		bars[i] = model.Bar{
			TS:     day0.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: v,
		}
	}
	return model.Series{Ticker: "TEST", Interval: "1d", Bars: bars}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// wave is a deterministic non-monotonic price path.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64(i)
		out[i] = 100 + 8*math.Sin(x/3) + 3*math.Cos(x/7) + 0.15*x
	}
	return out
}

func mustCompute(t *testing.T, s model.Series) model.IndicatorRecord {
	t.Helper()
	rec, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return rec
}

func deref(t *testing.T, key string, p *float64) float64 {
	t.Helper()
	if p == nil {
		t.Fatalf("%s: expected present, got absent", key)
	}
	return *p
}

// ────────────────────────────────────────────────────────────
// Insufficient data
// ────────────────────────────────────────────────────────────

func TestCompute_ShortSeries_Empty(t *testing.T) {
	for _, n := range []int{0, 1, 5, 19} {
		rec := mustCompute(t, makeSeries(wave(n), nil))
		if !rec.Empty() {
			t.Errorf("n=%d: expected empty record, got %+v", n, rec)
		}
		b, _ := json.Marshal(rec)
		if string(b) != "{}" {
			t.Errorf("n=%d: expected {}, got %s", n, b)
		}
	}
}

func TestCompute_ShortSeries_IgnoresMalformedValues(t *testing.T) {
	closes := wave(19)
	closes[3] = math.NaN()
	rec, err := Compute(makeSeries(closes, nil))
	if err != nil {
		t.Fatalf("expected no error below the lookback, got %v", err)
	}
	if !rec.Empty() {
		t.Errorf("expected empty record, got %+v", rec)
	}
}

// ────────────────────────────────────────────────────────────
// Flat 20-bar scenario
// ────────────────────────────────────────────────────────────

func TestCompute_Flat20(t *testing.T) {
	rec := mustCompute(t, makeSeries(constant(20, 100), constant(20, 1000)))

	checks := []struct {
		key  string
		p    *float64
		want float64
	}{
		{"sma_20", rec.SMA20, 100},
		{"bb_upper", rec.BBUpper, 100},
		{"bb_middle", rec.BBMiddle, 100},
		{"bb_lower", rec.BBLower, 100},
		{"bb_position", rec.BBPosition, 0.5},
		{"volume_ratio", rec.VolumeRatio, 1.0},
		{"rsi_14", rec.RSI14, 50.0},
		{"macd", rec.MACD, 0},
		{"macd_signal", rec.MACDSignal, 0},
		{"macd_hist", rec.MACDHist, 0},
	}
	for _, c := range checks {
		if got := deref(t, c.key, c.p); got != c.want {
			t.Errorf("%s: got %v, want %v", c.key, got, c.want)
		}
	}
	if rec.SMA50 != nil {
		t.Errorf("sma_50 should be absent with 20 bars, got %v", *rec.SMA50)
	}
	if rec.Date != "2024-01-20" {
		t.Errorf("date: got %q, want 2024-01-20", rec.Date)
	}
}

func TestCompute_Flat20_JSON(t *testing.T) {
	rec := mustCompute(t, makeSeries(constant(20, 100), constant(20, 1000)))
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"date", "rsi_14", "macd", "macd_signal", "macd_hist",
		"bb_upper", "bb_middle", "bb_lower", "bb_position", "sma_20", "volume_ratio"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %q in %s", k, b)
		}
	}
	if _, ok := m["sma_50"]; ok {
		t.Errorf("sma_50 must be omitted, got %s", b)
	}
}

// ────────────────────────────────────────────────────────────
// Lookback boundaries
// ────────────────────────────────────────────────────────────

func TestCompute_Between20And50_OmitsSMA50(t *testing.T) {
	for _, n := range []int{20, 26, 34, 49} {
		rec := mustCompute(t, makeSeries(wave(n), nil))
		if rec.SMA50 != nil {
			t.Errorf("n=%d: sma_50 should be absent", n)
		}
		for _, f := range []struct {
			key string
			p   *float64
		}{
			{"sma_20", rec.SMA20}, {"rsi_14", rec.RSI14}, {"macd", rec.MACD},
			{"macd_signal", rec.MACDSignal}, {"macd_hist", rec.MACDHist},
			{"bb_upper", rec.BBUpper}, {"bb_middle", rec.BBMiddle}, {"bb_lower", rec.BBLower},
			{"bb_position", rec.BBPosition}, {"volume_ratio", rec.VolumeRatio},
		} {
			if f.p == nil {
				t.Errorf("n=%d: %s should be present", n, f.key)
			}
		}
	}
}

func TestCompute_SMA50_IsTrailingMean(t *testing.T) {
	for _, n := range []int{50, 51, 120} {
		closes := wave(n)
		rec := mustCompute(t, makeSeries(closes, nil))

		sum := 0.0
		for _, c := range closes[n-50:] {
			sum += c
		}
		assertClose(t, "sma_50", deref(t, "sma_50", rec.SMA50), sum/50, 0.005)
	}
}

func TestCompute_SMA20_IsTrailingMean(t *testing.T) {
	closes := wave(73)
	rec := mustCompute(t, makeSeries(closes, nil))
	sum := 0.0
	for _, c := range closes[len(closes)-20:] {
		sum += c
	}
	assertClose(t, "sma_20", deref(t, "sma_20", rec.SMA20), sum/20, 0.005)
	assertClose(t, "bb_middle", deref(t, "bb_middle", rec.BBMiddle), sum/20, 0.005)
}

func TestCompute_SpikeAtBar49_ShiftsSMA50(t *testing.T) {
	base := linear(50, 100, 0.5)
	spiked := append([]float64(nil), base...)
	const delta = 50.0
	spiked[49] += delta

	a := deref(t, "sma_50", mustCompute(t, makeSeries(base, nil)).SMA50)
	b := deref(t, "sma_50", mustCompute(t, makeSeries(spiked, nil)).SMA50)

	assertClose(t, "sma_50 shift", b-a, delta/50, 0.0101)
}

// ────────────────────────────────────────────────────────────
// Degenerate numeric cases
// ────────────────────────────────────────────────────────────

func TestCompute_ZeroVolume_RatioIsOne(t *testing.T) {
	rec := mustCompute(t, makeSeries(wave(30), constant(30, 0)))
	if got := deref(t, "volume_ratio", rec.VolumeRatio); got != 1.0 {
		t.Errorf("volume_ratio: got %v, want exactly 1.0", got)
	}
}

func TestCompute_VolumeRatio(t *testing.T) {
	// 19 bars at 1000 then a 3000 bar: avg = 22000/20 = 1100 → 2.727... → 2.73
	vols := constant(20, 1000)
	vols[19] = 3000
	rec := mustCompute(t, makeSeries(wave(20), vols))
	if got := deref(t, "volume_ratio", rec.VolumeRatio); got != 2.73 {
		t.Errorf("volume_ratio: got %v, want 2.73", got)
	}
}

func TestCompute_FlatTail_BBPositionHalf(t *testing.T) {
	// Trending history followed by 20 identical closes
	closes := append(linear(30, 50, 1), constant(20, 80)...)
	rec := mustCompute(t, makeSeries(closes, nil))
	if got := deref(t, "bb_position", rec.BBPosition); got != 0.5 {
		t.Errorf("bb_position: got %v, want 0.5", got)
	}
}

func TestCompute_BBPosition_MatchesBands(t *testing.T) {
	closes := wave(90)
	for n := 20; n <= len(closes); n++ {
		rec := mustCompute(t, makeSeries(closes[:n], nil))
		p := deref(t, "bb_position", rec.BBPosition)
		up := deref(t, "bb_upper", rec.BBUpper)
		lo := deref(t, "bb_lower", rec.BBLower)
		want := (closes[n-1] - lo) / (up - lo)
		// the record's bands are rounded, so allow a little slack
		if math.Abs(p-want) > 0.01 {
			t.Fatalf("n=%d: bb_position %v, want about %v", n, p, want)
		}
	}
}

func TestCompute_BBPosition_BreakoutAboveOne(t *testing.T) {
	closes := append(constant(19, 100), 130)
	rec := mustCompute(t, makeSeries(closes, nil))
	up := deref(t, "bb_upper", rec.BBUpper)
	lo := deref(t, "bb_lower", rec.BBLower)
	if up != 114.58 || lo != 88.42 {
		t.Fatalf("bands: got %v/%v, want 114.58/88.42", up, lo)
	}
	// computed from the unrounded bands: 41.577/26.153
	if got := deref(t, "bb_position", rec.BBPosition); got != 1.59 {
		t.Errorf("bb_position: got %v, want 1.59", got)
	}
}

func TestCompute_Uptrend(t *testing.T) {
	rec := mustCompute(t, makeSeries(linear(60, 100, 1), nil))
	if got := deref(t, "rsi_14", rec.RSI14); got != 100 {
		t.Errorf("rsi_14 in strict uptrend: got %v, want 100", got)
	}
	if p := deref(t, "bb_position", rec.BBPosition); p < 0.8 {
		t.Errorf("bb_position in strict uptrend: got %v, want near 1", p)
	}
	if m := deref(t, "macd", rec.MACD); m <= 0 {
		t.Errorf("macd in strict uptrend: got %v, want > 0", m)
	}
}

func TestCompute_NoNonFiniteValues(t *testing.T) {
	rec := mustCompute(t, makeSeries(wave(200), linear(200, 0, 10)))
	for _, f := range rec.Fields() {
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
			t.Errorf("%s: non-finite %v", f.Key, f.Value)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Rounding
// ────────────────────────────────────────────────────────────

func TestCompute_RoundedOutput(t *testing.T) {
	rec := mustCompute(t, makeSeries(wave(80), nil))
	for _, f := range rec.Fields() {
		scale := 100.0
		if f.Key == model.KeyBBPosition {
			scale = 1000.0
		}
		if r := math.Round(f.Value*scale) / scale; r != f.Value {
			t.Errorf("%s: %v is not rounded to %v places", f.Key, f.Value, math.Log10(scale))
		}
	}
}

func TestRounded_NegativeZero(t *testing.T) {
	p := rounded(-0.001, 2)
	if p == nil || math.Signbit(*p) {
		t.Errorf("expected +0, got %v", p)
	}
	if rounded(math.NaN(), 2) != nil || rounded(math.Inf(1), 2) != nil {
		t.Error("non-finite input should round to nil")
	}
}

// ────────────────────────────────────────────────────────────
// Date
// ────────────────────────────────────────────────────────────

func TestCompute_DateUsesBarLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	s := makeSeries(wave(25), nil)
	for i := range s.Bars {
		s.Bars[i].TS = time.Date(2024, 2, 6, 0, 0, 0, 0, jst).AddDate(0, 0, i)
	}
	rec := mustCompute(t, s)
	if rec.Date != "2024-03-01" {
		t.Errorf("date: got %q, want 2024-03-01", rec.Date)
	}
}

// ────────────────────────────────────────────────────────────
// Malformed input
// ────────────────────────────────────────────────────────────

func TestCompute_Malformed(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *model.Series)
	}{
		{"nan close", func(s *model.Series) { s.Bars[5].Close = math.NaN() }},
		{"inf close", func(s *model.Series) { s.Bars[21].Close = math.Inf(1) }},
		{"nan volume", func(s *model.Series) { s.Bars[0].Volume = math.NaN() }},
		{"negative volume", func(s *model.Series) { s.Bars[10].Volume = -1 }},
		{"duplicate timestamp", func(s *model.Series) { s.Bars[7].TS = s.Bars[6].TS }},
		{"descending timestamp", func(s *model.Series) { s.Bars[24].TS = s.Bars[0].TS }},
		{"missing timestamp", func(s *model.Series) { s.Bars[0].TS = time.Time{} }},
	}
	for _, tc := range cases {
		s := makeSeries(wave(25), nil)
		tc.mutate(&s)
		rec, err := Compute(s)
		if !errors.Is(err, ErrMalformedInput) {
			t.Errorf("%s: expected ErrMalformedInput, got %v", tc.name, err)
		}
		if !rec.Empty() {
			t.Errorf("%s: expected empty record alongside error", tc.name)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Purity
// ────────────────────────────────────────────────────────────

func TestCompute_Idempotent(t *testing.T) {
	s := makeSeries(wave(64), linear(64, 500, 7))
	a := mustCompute(t, s)
	b := mustCompute(t, s)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("records differ:\n%+v\n%+v", a, b)
	}
}

func TestCompute_DoesNotMutateSeries(t *testing.T) {
	s := makeSeries(wave(40), nil)
	before := append([]model.Bar(nil), s.Bars...)
	mustCompute(t, s)
	if !reflect.DeepEqual(before, s.Bars) {
		t.Error("series was mutated")
	}
}

func TestCompute_Concurrent(t *testing.T) {
	s := makeSeries(wave(120), nil)
	want := mustCompute(t, s)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Compute(s)
			if err != nil || !reflect.DeepEqual(got, want) {
				errs <- "concurrent result differs"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

package model

// Indicator record keys, in output order.
const (
	KeyRSI14       = "rsi_14"
	KeyMACD        = "macd"
	KeyMACDSignal  = "macd_signal"
	KeyMACDHist    = "macd_hist"
	KeyBBUpper     = "bb_upper"
	KeyBBMiddle    = "bb_middle"
	KeyBBLower     = "bb_lower"
	KeyBBPosition  = "bb_position"
	KeySMA20       = "sma_20"
	KeySMA50       = "sma_50"
	KeyVolumeRatio = "volume_ratio"
)

// IndicatorRecord holds the latest value of each indicator for a series.
// A nil field means the indicator is undefined for that series and is
// omitted from JSON. The zero value is the empty record and encodes as {}.
type IndicatorRecord struct {
	Date        string   `json:"date,omitempty"` // YYYY-MM-DD of the last bar
	RSI14       *float64 `json:"rsi_14,omitempty"`
	MACD        *float64 `json:"macd,omitempty"`
	MACDSignal  *float64 `json:"macd_signal,omitempty"`
	MACDHist    *float64 `json:"macd_hist,omitempty"`
	BBUpper     *float64 `json:"bb_upper,omitempty"`
	BBMiddle    *float64 `json:"bb_middle,omitempty"`
	BBLower     *float64 `json:"bb_lower,omitempty"`
	BBPosition  *float64 `json:"bb_position,omitempty"`
	SMA20       *float64 `json:"sma_20,omitempty"`
	SMA50       *float64 `json:"sma_50,omitempty"`
	VolumeRatio *float64 `json:"volume_ratio,omitempty"`
}

// Field is one named value of a record.
type Field struct {
	Key   string
	Value float64
}

// Empty reports whether no indicator was computed.
func (r IndicatorRecord) Empty() bool {
	return r.Date == "" && len(r.Fields()) == 0
}

// Fields returns the present values in canonical key order. Date is not
// included.
func (r IndicatorRecord) Fields() []Field {
	all := []struct {
		key string
		v   *float64
	}{
		{KeyRSI14, r.RSI14},
		{KeyMACD, r.MACD},
		{KeyMACDSignal, r.MACDSignal},
		{KeyMACDHist, r.MACDHist},
		{KeyBBUpper, r.BBUpper},
		{KeyBBMiddle, r.BBMiddle},
		{KeyBBLower, r.BBLower},
		{KeyBBPosition, r.BBPosition},
		{KeySMA20, r.SMA20},
		{KeySMA50, r.SMA50},
		{KeyVolumeRatio, r.VolumeRatio},
	}
	out := make([]Field, 0, len(all))
	for _, f := range all {
		if f.v != nil {
			out = append(out, Field{Key: f.key, Value: *f.v})
		}
	}
	return out
}

// Get returns the value stored under key.
func (r IndicatorRecord) Get(key string) (float64, bool) {
	for _, f := range r.Fields() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return 0, false
}

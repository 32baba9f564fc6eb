// Package marketdata fetches daily price history and ticker metadata from
// an upstream source and caches it for the dashboard.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"stockdash/internal/model"
)

// Provider is a source of market data.
type Provider interface {
	// History returns bars for the request in ascending time order.
	History(ctx context.Context, req Request) (model.Series, error)

	// Info returns descriptive metadata and the latest price for ticker.
	Info(ctx context.Context, ticker string) (model.TickerInfo, error)

	// Search looks up instruments whose name or code matches query.
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

var (
	// ErrInvalidRequest marks a period, interval or ticker the provider
	// refuses before any upstream call is made.
	ErrInvalidRequest = errors.New("invalid market data request")

	// ErrNoData is returned when the upstream knows nothing about a ticker.
	ErrNoData = errors.New("no market data")
)

// DefaultPeriod and DefaultInterval apply when a Request leaves them empty.
const (
	DefaultPeriod   = "6mo"
	DefaultInterval = "1d"
)

var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

var validIntervals = map[string]bool{
	"1h": true, "1d": true, "1wk": true, "1mo": true,
}

// Request identifies a history query.
type Request struct {
	Ticker   string
	Period   string
	Interval string
}

// Normalize fills defaults, canonicalises the ticker and validates the
// period and interval.
func (r Request) Normalize() (Request, error) {
	r.Ticker = NormalizeTicker(r.Ticker)
	if r.Ticker == "" {
		return r, fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
	}
	if r.Period == "" {
		r.Period = DefaultPeriod
	}
	if r.Interval == "" {
		r.Interval = DefaultInterval
	}
	if !validPeriods[r.Period] {
		return r, fmt.Errorf("%w: period %q", ErrInvalidRequest, r.Period)
	}
	if !validIntervals[r.Interval] {
		return r, fmt.Errorf("%w: interval %q", ErrInvalidRequest, r.Interval)
	}
	return r, nil
}

// Key is the cache key for the request. Call on a normalized request.
func (r Request) Key() string {
	return "history:" + r.Ticker + ":" + r.Period + ":" + r.Interval
}

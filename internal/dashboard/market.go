package dashboard

import (
	"context"
	"errors"
	"time"

	"stockdash/internal/indicator"
	"stockdash/internal/marketdata"
	"stockdash/internal/model"
)

// Quote returns the current quote for ticker.
func (s *Service) Quote(ctx context.Context, ticker string) (model.Quote, error) {
	return marketdata.GetQuote(ctx, s.market, ticker)
}

// Search looks up tickers by name or code.
func (s *Service) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	return s.market.Search(ctx, query)
}

// Indicators fetches period of daily history for ticker and computes the
// latest indicator record. With too little history only the ticker is set.
func (s *Service) Indicators(ctx context.Context, ticker, period string) (model.IndicatorSnapshot, error) {
	if period == "" {
		period = s.period
	}
	series, err := s.market.History(ctx, marketdata.Request{Ticker: ticker, Period: period})
	if err != nil {
		return model.IndicatorSnapshot{}, err
	}
	rec, err := s.compute(series)
	if err != nil {
		return model.IndicatorSnapshot{}, err
	}
	return model.IndicatorSnapshot{Ticker: series.Ticker, IndicatorRecord: rec}, nil
}

// compute runs the indicator engine and records its latency and outcome.
func (s *Service) compute(series model.Series) (model.IndicatorRecord, error) {
	start := time.Now()
	rec, err := indicator.Compute(series)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case rec.Empty():
		result = "empty"
	}
	s.metrics.ObserveCompute(time.Since(start), result)
	return rec, err
}

// IsMalformedInput reports whether err came from rejected bar data.
func IsMalformedInput(err error) bool {
	return errors.Is(err, indicator.ErrMalformedInput)
}

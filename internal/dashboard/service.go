// Package dashboard implements the swing-trading dashboard's use cases:
// market lookups with indicators, the trade log, the watchlist and the
// analysis chat. Transports (HTTP, CLI, scanner) call into Service.
package dashboard

import (
	"context"
	"errors"
	"time"

	"stockdash/internal/journal"
	"stockdash/internal/marketdata"
	"stockdash/internal/markethours"
	"stockdash/internal/metrics"
	"stockdash/internal/model"
)

var (
	// ErrNotFound marks a missing trade or watchlist item.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a request that collides with existing state.
	ErrConflict = errors.New("conflict")

	// ErrInvalid marks a request the service refuses to act on.
	ErrInvalid = errors.New("invalid request")
)

// Chatter is the LLM conversation backend.
type Chatter interface {
	Chat(ctx context.Context, message, conversationID, dataContext string) (reply, id string, err error)
}

// Deps are the collaborators of a Service. Journal, Chat and Metrics may
// be nil.
type Deps struct {
	Trades    model.TradeRepository
	Watchlist model.WatchlistRepository
	Market    marketdata.Provider
	Journal   *journal.Writer
	Chat      Chatter
	Metrics   *metrics.Metrics

	// DefaultPeriod is the history window used when a caller names none.
	DefaultPeriod string
}

// Service coordinates storage, market data, the indicator engine, the
// journal and the LLM.
type Service struct {
	trades  model.TradeRepository
	watch   model.WatchlistRepository
	market  marketdata.Provider
	journal *journal.Writer
	chat    Chatter
	metrics *metrics.Metrics
	period  string
	now     func() time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	period := d.DefaultPeriod
	if period == "" {
		period = marketdata.DefaultPeriod
	}
	return &Service{
		trades:  d.Trades,
		watch:   d.Watchlist,
		market:  d.Market,
		journal: d.Journal,
		chat:    d.Chat,
		metrics: d.Metrics,
		period:  period,
		now:     time.Now,
	}
}

// today is the current calendar date on the exchange's clock.
func (s *Service) today() string {
	return s.now().In(markethours.JST).Format(model.DateLayout)
}

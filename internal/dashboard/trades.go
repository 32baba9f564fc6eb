package dashboard

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/guregu/null/v5"

	"stockdash/internal/marketdata"
	"stockdash/internal/model"
	"stockdash/internal/portfolio"
)

// CreateTrade records a new open trade dated today and writes its journal
// note with the indicator snapshot at entry. Journal and indicator failures
// are logged; they never fail the request.
func (s *Service) CreateTrade(ctx context.Context, in model.TradeCreate) (model.Trade, error) {
	in.Ticker = marketdata.NormalizeTicker(in.Ticker)
	if err := validateCreate(in); err != nil {
		return model.Trade{}, err
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	t, err := s.trades.CreateTrade(ctx, model.Trade{
		Ticker:      in.Ticker,
		Direction:   in.Direction,
		EntryDate:   s.today(),
		EntryPrice:  in.EntryPrice,
		TargetPrice: in.TargetPrice,
		StopLoss:    in.StopLoss,
		EntryReason: in.EntryReason,
		Status:      model.TradeOpen,
		Tags:        tags,
	})
	if err != nil {
		return model.Trade{}, err
	}

	if s.journal != nil {
		var rec model.IndicatorRecord
		if snap, err := s.Indicators(ctx, t.Ticker, s.period); err != nil {
			log.Printf("[dashboard] trade %d: indicators for journal: %v", t.ID, err)
		} else {
			rec = snap.IndicatorRecord
		}
		if path, err := s.journal.WriteEntry(t, rec); err != nil {
			log.Printf("[dashboard] trade %d: journal write failed: %v", t.ID, err)
		} else {
			log.Printf("[dashboard] trade %d: journal %s", t.ID, path)
		}
	}
	return t, nil
}

func validateCreate(in model.TradeCreate) error {
	var problems []string
	if in.Ticker == "" {
		problems = append(problems, "ticker is required")
	}
	if !in.Direction.Valid() {
		problems = append(problems, fmt.Sprintf("direction must be long or short, got %q", in.Direction))
	}
	if !positive(in.EntryPrice) {
		problems = append(problems, "entry_price must be positive")
	}
	if in.TargetPrice.Valid && !positive(in.TargetPrice.Float64) {
		problems = append(problems, "target_price must be positive")
	}
	if in.StopLoss.Valid && !positive(in.StopLoss.Float64) {
		problems = append(problems, "stop_loss must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// CloseTrade closes an open trade at in.ExitPrice today and records its P/L.
func (s *Service) CloseTrade(ctx context.Context, id int64, in model.TradeClose) (model.Trade, error) {
	if !positive(in.ExitPrice) {
		return model.Trade{}, fmt.Errorf("%w: exit_price must be positive", ErrInvalid)
	}
	t, found, err := s.trades.GetTrade(ctx, id)
	if err != nil {
		return model.Trade{}, err
	}
	if !found {
		return model.Trade{}, fmt.Errorf("%w: Trade not found", ErrNotFound)
	}
	if t.Status != model.TradeOpen {
		return model.Trade{}, fmt.Errorf("%w: Trade is already %s", ErrInvalid, t.Status)
	}

	pnl, pct := portfolio.RealizedPnL(t.Direction, t.EntryPrice, in.ExitPrice)
	t.ExitDate = null.StringFrom(s.today())
	t.ExitPrice = null.FloatFrom(in.ExitPrice)
	t.ExitReason = null.StringFrom(in.ExitReason)
	t.PnL = null.FloatFrom(pnl)
	t.PnLPct = null.FloatFrom(pct)
	t.Status = model.TradeClosed

	if err := s.trades.UpdateTrade(ctx, t); err != nil {
		return model.Trade{}, err
	}
	if _, err := s.journal.UpdateOnClose(t); err != nil {
		log.Printf("[dashboard] trade %d: journal update failed: %v", t.ID, err)
	}
	return t, nil
}

// ListTrades returns trades newest first. An empty status lists all.
func (s *Service) ListTrades(ctx context.Context, status model.TradeStatus) ([]model.Trade, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	return s.trades.ListTrades(ctx, status)
}

// GetTrade returns one trade.
func (s *Service) GetTrade(ctx context.Context, id int64) (model.Trade, error) {
	t, found, err := s.trades.GetTrade(ctx, id)
	if err != nil {
		return model.Trade{}, err
	}
	if !found {
		return model.Trade{}, fmt.Errorf("%w: Trade not found", ErrNotFound)
	}
	return t, nil
}

// TradeStats summarises the whole trade log.
func (s *Service) TradeStats(ctx context.Context) (model.TradeStats, error) {
	trades, err := s.trades.ListTrades(ctx, "")
	if err != nil {
		return model.TradeStats{}, err
	}
	return portfolio.Stats(trades), nil
}

package model

import (
	"time"

	"github.com/guregu/null/v5"
)

// Direction is the side of a trade.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == Long || d == Short }

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	TradeOpen      TradeStatus = "open"
	TradeClosed    TradeStatus = "closed"
	TradeCancelled TradeStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	return s == TradeOpen || s == TradeClosed || s == TradeCancelled
}

// DateLayout is the calendar date format used for trade and watchlist dates.
const DateLayout = "2006-01-02"

// Trade is a recorded swing trade. Optional columns use null types so they
// round-trip through SQLite and JSON as null.
type Trade struct {
	ID          int64       `json:"id"`
	Ticker      string      `json:"ticker"`
	Direction   Direction   `json:"direction"`
	EntryDate   string      `json:"entry_date"`
	EntryPrice  float64     `json:"entry_price"`
	TargetPrice null.Float  `json:"target_price"`
	StopLoss    null.Float  `json:"stop_loss"`
	ExitDate    null.String `json:"exit_date"`
	ExitPrice   null.Float  `json:"exit_price"`
	EntryReason string      `json:"entry_reason"`
	ExitReason  null.String `json:"exit_reason"`
	PnL         null.Float  `json:"pnl"`
	PnLPct      null.Float  `json:"pnl_pct"`
	Status      TradeStatus `json:"status"`
	Tags        []string    `json:"tags"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TradeCreate is the input for opening a trade.
type TradeCreate struct {
	Ticker      string     `json:"ticker"`
	Direction   Direction  `json:"direction"`
	EntryPrice  float64    `json:"entry_price"`
	TargetPrice null.Float `json:"target_price"`
	StopLoss    null.Float `json:"stop_loss"`
	EntryReason string     `json:"entry_reason"`
	Tags        []string   `json:"tags"`
}

// TradeClose is the input for closing a trade.
type TradeClose struct {
	ExitPrice  float64 `json:"exit_price"`
	ExitReason string  `json:"exit_reason"`
}

// TradeStats summarises closed-trade performance.
type TradeStats struct {
	TotalTrades   int     `json:"total_trades"`
	OpenPositions int     `json:"open_positions"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"` // percent of closed trades
	TotalPnL      float64 `json:"total_pnl"`
	AvgPnLPct     float64 `json:"avg_pnl_pct"`
}

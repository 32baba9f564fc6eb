package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the dashboard service from concrete storage
// (SQLite for records, Redis or in-process LRU for market data).

// TradeRepository persists trades.
type TradeRepository interface {
	// CreateTrade inserts t and returns it with ID and timestamps set.
	CreateTrade(ctx context.Context, t Trade) (Trade, error)

	// UpdateTrade overwrites every mutable column of an existing trade.
	UpdateTrade(ctx context.Context, t Trade) error

	// GetTrade returns the trade with the given id. found is false if absent.
	GetTrade(ctx context.Context, id int64) (t Trade, found bool, err error)

	// ListTrades returns trades newest first. An empty status matches all.
	ListTrades(ctx context.Context, status TradeStatus) ([]Trade, error)
}

// WatchlistRepository persists watchlist items.
type WatchlistRepository interface {
	// AddWatch inserts an item. Returns ErrDuplicate if the ticker exists.
	AddWatch(ctx context.Context, item WatchlistItem) (WatchlistItem, error)

	// FindWatchByTicker looks up an item regardless of status.
	FindWatchByTicker(ctx context.Context, ticker string) (item WatchlistItem, found bool, err error)

	// ListWatch returns items with the given status, oldest first.
	ListWatch(ctx context.Context, status string) ([]WatchlistItem, error)

	// SetWatchStatus changes an item's status. found is false if absent.
	SetWatchStatus(ctx context.Context, id int64, status string) (found bool, err error)
}

// SeriesCache stores fetched market data for a bounded time.
type SeriesCache interface {
	// GetSeries returns a cached series. ok is false on miss.
	GetSeries(ctx context.Context, key string) (s Series, ok bool)

	// SetSeries stores s under key for ttl.
	SetSeries(ctx context.Context, key string, s Series, ttl time.Duration)

	// GetInfo returns cached ticker metadata. ok is false on miss.
	GetInfo(ctx context.Context, key string) (info TickerInfo, ok bool)

	// SetInfo stores info under key for ttl.
	SetInfo(ctx context.Context, key string, info TickerInfo, ttl time.Duration)
}

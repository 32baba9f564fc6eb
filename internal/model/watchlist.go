package model

import "github.com/guregu/null/v5"

// Watchlist item statuses.
const (
	WatchActive   = "active"
	WatchArchived = "archived"
)

// WatchlistItem is a ticker the user is tracking.
type WatchlistItem struct {
	ID        int64       `json:"id"`
	Ticker    string      `json:"ticker"`
	Name      null.String `json:"name"`
	Sector    null.String `json:"sector"`
	AddedDate string      `json:"added_date"`
	Memo      string      `json:"memo"`
	Status    string      `json:"status"`
}

// WatchlistAdd is the input for adding a ticker.
type WatchlistAdd struct {
	Ticker string `json:"ticker"`
	Memo   string `json:"memo"`
}

// Package api serves the dashboard's JSON HTTP API.
package api

import (
	"net/http"

	"stockdash/internal/dashboard"
	"stockdash/internal/metrics"
	"stockdash/internal/notification"
)

// AlertSource lists recently delivered watchlist alerts.
type AlertSource interface {
	Recent(limit int) []notification.Alert
}

// Options configure the router. WS, Alerts and Metrics may be nil.
type Options struct {
	Service     *dashboard.Service
	WS          http.Handler // live watchlist feed at /ws/watchlist
	Alerts      AlertSource
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

type handlers struct {
	svc    *dashboard.Service
	alerts AlertSource
}

// NewRouter builds the API handler with logging, panic recovery and CORS.
func NewRouter(opts Options) http.Handler {
	h := &handlers{svc: opts.Service, alerts: opts.Alerts}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Market
	mux.HandleFunc("GET /api/market/quote/{ticker}", h.quote)
	mux.HandleFunc("GET /api/market/indicators/{ticker}", h.indicators)
	mux.HandleFunc("GET /api/market/search", h.search)

	// Analysis
	mux.HandleFunc("POST /api/analysis/chat", h.chat)

	// Trades
	mux.HandleFunc("POST /api/trade/{$}", h.createTrade)
	mux.HandleFunc("GET /api/trade/{$}", h.listTrades)
	mux.HandleFunc("GET /api/trade/stats", h.tradeStats)
	mux.HandleFunc("GET /api/trade/{id}", h.getTrade)
	mux.HandleFunc("POST /api/trade/{id}/close", h.closeTrade)

	// Watchlist
	mux.HandleFunc("POST /api/watchlist/{$}", h.addWatch)
	mux.HandleFunc("GET /api/watchlist/{$}", h.listWatch)
	mux.HandleFunc("DELETE /api/watchlist/{id}", h.archiveWatch)
	mux.HandleFunc("GET /api/watchlist/alerts", h.recentAlerts)

	if opts.WS != nil {
		mux.Handle("GET /ws/watchlist", opts.WS)
	}

	return Chain(
		Recovery,
		RequestLogger(opts.Metrics),
		CORS(opts.CORSOrigins),
	)(mux)
}

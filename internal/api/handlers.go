package api

import (
	"fmt"
	"net/http"
	"strconv"

	"stockdash/internal/dashboard"
	"stockdash/internal/model"
	"stockdash/internal/notification"
)

// ── Market ──

func (h *handlers) quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Quote(r.Context(), r.PathValue("ticker"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *handlers) indicators(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Indicators(r.Context(), r.PathValue("ticker"), r.URL.Query().Get("period"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ── Analysis ──

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req dashboard.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	resp, err := h.svc.Chat(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Trades ──

func (h *handlers) createTrade(w http.ResponseWriter, r *http.Request) {
	var in model.TradeCreate
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, r, err)
		return
	}
	t, err := h.svc.CreateTrade(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) listTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.svc.ListTrades(r.Context(), model.TradeStatus(r.URL.Query().Get("status")))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (h *handlers) tradeStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.TradeStats(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) getTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	t, err := h.svc.GetTrade(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) closeTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var in model.TradeClose
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, r, err)
		return
	}
	t, err := h.svc.CloseTrade(r.Context(), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ── Watchlist ──

func (h *handlers) addWatch(w http.ResponseWriter, r *http.Request) {
	var in model.WatchlistAdd
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.svc.AddWatch(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *handlers) listWatch(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListWatch(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handlers) archiveWatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.svc.ArchiveWatch(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *handlers) recentAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(w, r, fmt.Errorf("%w: limit must be a positive integer", dashboard.ErrInvalid))
			return
		}
		limit = n
	}
	alerts := []notification.Alert{}
	if h.alerts != nil {
		alerts = append(alerts, h.alerts.Recent(limit)...)
	}
	writeJSON(w, http.StatusOK, alerts)
}

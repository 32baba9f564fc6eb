// Package gateway pushes watchlist indicator updates to websocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockdash/internal/markethours"
	"stockdash/internal/metrics"
	"stockdash/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Update is one ticker's freshly computed indicator record.
type Update struct {
	Ticker     string                `json:"ticker"`
	Indicators model.IndicatorRecord `json:"indicators"`
	TS         time.Time             `json:"ts"`
}

// Publisher delivers updates to connected clients, either directly or
// through a shared channel.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

// Hub tracks websocket clients and the latest update per ticker.
type Hub struct {
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	Broadcaster *Broadcaster
}

type latestEntry struct {
	Update Update
	Seq    int64
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	h := &Hub{
		metrics: m,
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Publish broadcasts u to this hub's clients.
func (h *Hub) Publish(_ context.Context, u Update) error {
	h.Broadcaster.Broadcast(u)
	return nil
}

// ServeHTTP upgrades the request and registers the client. New clients
// first receive the latest update for every ticker seen so far.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade failed: %v", err)
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWSClients(count)

	log.Printf("[gateway] ws client connected (%d total)", count)

	client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters c and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	h.metrics.SetWSClients(count)
}

// Latest returns the most recent update for ticker.
func (h *Hub) Latest(ticker string) (Update, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.latest[ticker]
	return e.Update, ok
}

// snapshot returns the latest entries ordered by ticker.
func (h *Hub) snapshot() []latestEntry {
	h.mu.RLock()
	out := make([]latestEntry, 0, len(h.latest))
	for _, e := range h.latest {
		out = append(out, e)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Update.Ticker < out[j].Update.Ticker })
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

// StartStatusBroadcast sends the market session status to all clients
// every interval. Blocks until ctx is cancelled.
func (h *Hub) StartStatusBroadcast(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			envelope, _ := json.Marshal(map[string]interface{}{
				"type":          "status",
				"market_open":   markethours.IsMarketOpen(now),
				"market_status": markethours.StatusString(now),
				"clients":       h.ClientCount(),
			})
			h.Broadcaster.fanOut(envelope)
		}
	}
}

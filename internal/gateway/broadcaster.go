package gateway

import (
	"encoding/json"
	"log"
	"time"

	"stockdash/internal/model"
)

// envelope is the websocket message for one indicator update. Seq is a
// hub-wide counter so clients can spot gaps.
type envelope struct {
	Type       string                `json:"type"`
	Ticker     string                `json:"ticker"`
	Indicators model.IndicatorRecord `json:"indicators"`
	TS         string                `json:"ts"`
	Seq        int64                 `json:"seq"`
	Initial    bool                  `json:"initial,omitempty"`
}

// Broadcaster builds envelopes and fans them out to clients.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast records u as the ticker's latest state and sends it to every
// client. Slow clients whose queue is full miss the message.
func (b *Broadcaster) Broadcast(u Update) {
	if u.TS.IsZero() {
		u.TS = time.Now().UTC()
	}

	b.hub.mu.Lock()
	b.hub.seq++
	seq := b.hub.seq
	b.hub.latest[u.Ticker] = latestEntry{Update: u, Seq: seq}
	b.hub.mu.Unlock()

	data, err := encode(u, seq, false)
	if err != nil {
		log.Printf("[gateway] encode %s: %v", u.Ticker, err)
		return
	}
	b.fanOut(data)
}

func (b *Broadcaster) fanOut(data []byte) {
	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func encode(u Update, seq int64, initial bool) ([]byte, error) {
	return json.Marshal(envelope{
		Type:       "indicators",
		Ticker:     u.Ticker,
		Indicators: u.Indicators,
		TS:         u.TS.UTC().Format(time.RFC3339Nano),
		Seq:        seq,
		Initial:    initial,
	})
}

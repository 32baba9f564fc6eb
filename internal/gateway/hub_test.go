package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"stockdash/internal/metrics"
	"stockdash/internal/model"
	"stockdash/internal/store/redis"
)

func f(v float64) *float64 { return &v }

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return env
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count: got %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastToClients(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, h, 2)

	ts := time.Date(2024, 3, 1, 1, 30, 0, 0, time.UTC)
	h.Publish(context.Background(), Update{
		Ticker:     "7203.T",
		Indicators: model.IndicatorRecord{Date: "2024-03-01", RSI14: f(72.5)},
		TS:         ts,
	})

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		if env.Type != "indicators" || env.Ticker != "7203.T" {
			t.Errorf("unexpected envelope: %+v", env)
		}
		if env.Indicators.RSI14 == nil || *env.Indicators.RSI14 != 72.5 {
			t.Errorf("rsi_14: got %v", env.Indicators.RSI14)
		}
		if env.Seq != 1 || env.Initial {
			t.Errorf("seq/initial: got %d/%v", env.Seq, env.Initial)
		}
		if env.TS != "2024-03-01T01:30:00Z" {
			t.Errorf("ts: got %q", env.TS)
		}
	}
}

func TestHub_ReplaysLatestToNewClient(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx := context.Background()
	h.Publish(ctx, Update{Ticker: "9984.T", Indicators: model.IndicatorRecord{SMA20: f(1)}})
	h.Publish(ctx, Update{Ticker: "7203.T", Indicators: model.IndicatorRecord{SMA20: f(2)}})
	h.Publish(ctx, Update{Ticker: "7203.T", Indicators: model.IndicatorRecord{SMA20: f(3)}})

	conn := dial(t, srv)

	first := readEnvelope(t, conn)
	second := readEnvelope(t, conn)
	if !first.Initial || !second.Initial {
		t.Fatal("replayed envelopes should be marked initial")
	}
	if first.Ticker != "7203.T" || *first.Indicators.SMA20 != 3 || first.Seq != 3 {
		t.Errorf("7203.T replay: got %+v", first)
	}
	if second.Ticker != "9984.T" || *second.Indicators.SMA20 != 1 {
		t.Errorf("9984.T replay: got %+v", second)
	}

	if u, ok := h.Latest("7203.T"); !ok || *u.Indicators.SMA20 != 3 {
		t.Errorf("Latest: got %+v, %v", u, ok)
	}
}

func TestHub_PingPong(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"ping":123}`)); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var pong struct {
		Type string `json:"type"`
		Ping int64  `json:"ping"`
	}
	json.Unmarshal(msg, &pong)
	if pong.Type != "pong" || pong.Ping != 123 {
		t.Errorf("unexpected reply: %s", msg)
	}
}

func TestHub_DisconnectUpdatesGauge(t *testing.T) {
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	h := NewHub(m)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, h, 1)
	if got := testutil.ToFloat64(m.WSClients); got != 1 {
		t.Errorf("ws clients gauge: got %v, want 1", got)
	}

	conn.Close()
	waitClients(t, h, 0)
	if got := testutil.ToFloat64(m.WSClients); got != 0 {
		t.Errorf("ws clients gauge after disconnect: got %v, want 0", got)
	}
}

func TestPubSubRouter_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rc, err := redis.New(redis.Config{Addr: addr})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer rc.Close()

	h := NewHub(nil)
	router := NewPubSubRouter(h, rc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)
	time.Sleep(200 * time.Millisecond)

	if err := router.Publish(ctx, Update{Ticker: "6758.T", Indicators: model.IndicatorRecord{RSI14: f(25)}}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if u, ok := h.Latest("6758.T"); ok {
			if *u.Indicators.RSI14 != 25 {
				t.Errorf("rsi_14: got %v", *u.Indicators.RSI14)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("update never reached the hub")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

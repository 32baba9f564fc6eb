package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/dashboard"
	"stockdash/internal/llm"
	"stockdash/internal/marketdata"
	"stockdash/internal/model"
	"stockdash/internal/notification"
	"stockdash/internal/store/sqlite"
)

type stubMarket struct {
	bars    []model.Bar
	histErr error
}

func (m *stubMarket) History(_ context.Context, req marketdata.Request) (model.Series, error) {
	req, err := req.Normalize()
	if err != nil {
		return model.Series{}, err
	}
	if m.histErr != nil {
		return model.Series{}, m.histErr
	}
	return model.Series{Ticker: req.Ticker, Interval: req.Interval, Bars: m.bars}, nil
}

func (m *stubMarket) Info(_ context.Context, ticker string) (model.TickerInfo, error) {
	return model.TickerInfo{Ticker: ticker, ShortName: null.StringFrom("TOYOTA"), Price: 2750, PreviousClose: 2700}, nil
}

func (m *stubMarket) Search(_ context.Context, q string) ([]model.SearchResult, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: empty query", marketdata.ErrInvalidRequest)
	}
	return []model.SearchResult{{Ticker: "7203.T", Name: "TOYOTA"}}, nil
}

type stubChat struct{ err error }

func (c stubChat) Chat(_ context.Context, msg, id, _ string) (string, string, error) {
	if c.err != nil {
		return "", "", c.err
	}
	return "ok: " + msg, "conv-1", nil
}

func bars(n int) []model.Bar {
	out := make([]model.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := 100 + float64(i%7)
		out[i] = model.Bar{TS: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out
}

func newServer(t *testing.T, market *stubMarket, chat dashboard.Chatter) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := dashboard.New(dashboard.Deps{Trades: store, Watchlist: store, Market: market, Chat: chat})
	srv := httptest.NewServer(NewRouter(Options{Service: svc, CORSOrigins: []string{"*"}}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func doList(t *testing.T, url string) []map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ────────────────────────────────────────────────────────────
// Health & market
// ────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := newServer(t, &stubMarket{}, nil)
	resp, body := do(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestIndicators(t *testing.T) {
	srv := newServer(t, &stubMarket{bars: bars(60)}, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/market/indicators/7203.T", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "7203.T", body["ticker"])
	assert.Equal(t, "2024-02-29", body["date"])
	for _, key := range []string{"rsi_14", "macd", "macd_signal", "macd_hist", "bb_upper", "bb_middle", "bb_lower", "bb_position", "sma_20", "sma_50", "volume_ratio"} {
		assert.Contains(t, body, key)
	}
}

func TestIndicators_ShortHistory(t *testing.T) {
	srv := newServer(t, &stubMarket{bars: bars(19)}, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/market/indicators/7203.T", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"ticker": "7203.T"}, body)
}

func TestIndicators_UnknownTicker(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	t.Cleanup(upstream.Close)

	store, err := sqlite.New(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	market := marketdata.NewYahooProvider(upstream.URL, time.Second)
	svc := dashboard.New(dashboard.Deps{Trades: store, Watchlist: store, Market: market})
	srv := httptest.NewServer(NewRouter(Options{Service: svc}))
	t.Cleanup(srv.Close)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/market/indicators/BOGUS", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"ticker": "BOGUS"}, body)
}

func TestIndicators_Errors(t *testing.T) {
	bad := bars(30)
	bad[10].Close = -1
	bad[10].Volume = -5
	srv := newServer(t, &stubMarket{bars: bad}, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/market/indicators/7203.T", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["detail"], "malformed")

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/market/indicators/7203.T?period=7d", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	down := newServer(t, &stubMarket{histErr: marketdata.ErrCircuitOpen}, nil)
	resp, _ = do(t, http.MethodGet, down.URL+"/api/market/indicators/7203.T", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestQuoteAndSearch(t *testing.T) {
	srv := newServer(t, &stubMarket{}, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/market/quote/7203.T", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.85, body["change_pct"])
	assert.Equal(t, "TOYOTA", body["name"])

	hits := doList(t, srv.URL+"/api/market/search?q=toyota")
	assert.Len(t, hits, 1)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/market/search", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ────────────────────────────────────────────────────────────
// Trades
// ────────────────────────────────────────────────────────────

func TestTradeLifecycle(t *testing.T) {
	srv := newServer(t, &stubMarket{bars: bars(60)}, nil)

	resp, created := do(t, http.MethodPost, srv.URL+"/api/trade/",
		`{"ticker":"7203.T","direction":"long","entry_price":1000,"stop_loss":950,"tags":["swing"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, created)
	assert.Equal(t, "open", created["status"])
	assert.Nil(t, created["target_price"])
	assert.Equal(t, 950.0, created["stop_loss"])
	id := int(created["id"].(float64))

	resp, closed := do(t, http.MethodPost, fmt.Sprintf("%s/api/trade/%d/close", srv.URL, id), `{"exit_price":1100,"exit_reason":"target"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closed", closed["status"])
	assert.Equal(t, 100.0, closed["pnl"])
	assert.Equal(t, 10.0, closed["pnl_pct"])

	resp, body := do(t, http.MethodPost, fmt.Sprintf("%s/api/trade/%d/close", srv.URL, id), `{"exit_price":1100}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Trade is already closed", body["detail"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/trade/999/close", `{"exit_price":1100}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Trade not found", body["detail"])

	resp, got := do(t, http.MethodGet, fmt.Sprintf("%s/api/trade/%d", srv.URL, id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "target", got["exit_reason"])

	assert.Len(t, doList(t, srv.URL+"/api/trade/"), 1)
	assert.Len(t, doList(t, srv.URL+"/api/trade/?status=open"), 0)

	resp, stats := do(t, http.MethodGet, srv.URL+"/api/trade/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, stats["wins"])
	assert.Equal(t, 100.0, stats["win_rate"])
}

func TestTrade_BadInput(t *testing.T) {
	srv := newServer(t, &stubMarket{}, nil)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/trade/", `{"ticker":"7203.T","direction":"up","entry_price":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/trade/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/trade/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/trade/?status=pending", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ────────────────────────────────────────────────────────────
// Watchlist
// ────────────────────────────────────────────────────────────

func TestWatchlist(t *testing.T) {
	srv := newServer(t, &stubMarket{}, nil)

	resp, item := do(t, http.MethodPost, srv.URL+"/api/watchlist/", `{"ticker":"7203.T","memo":"earnings"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "TOYOTA", item["name"])
	assert.Nil(t, item["sector"])
	id := int(item["id"].(float64))

	resp, body := do(t, http.MethodPost, srv.URL+"/api/watchlist/", `{"ticker":"7203.T"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Already in watchlist", body["detail"])

	assert.Len(t, doList(t, srv.URL+"/api/watchlist/"), 1)

	resp, body = do(t, http.MethodDelete, fmt.Sprintf("%s/api/watchlist/%d", srv.URL, id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "archived", body["status"])
	assert.Len(t, doList(t, srv.URL+"/api/watchlist/"), 0)

	resp, body = do(t, http.MethodDelete, srv.URL+"/api/watchlist/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Item not found", body["detail"])
}

type stubAlerts []notification.Alert

func (a stubAlerts) Recent(limit int) []notification.Alert {
	if limit < len(a) {
		return a[:limit]
	}
	return a
}

func TestRecentAlerts(t *testing.T) {
	store, err := sqlite.New(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "alerts.db")})
	require.NoError(t, err)
	defer store.Close()
	svc := dashboard.New(dashboard.Deps{Trades: store, Watchlist: store, Market: &stubMarket{}})

	alerts := stubAlerts{
		{Ticker: "7203.T", Kind: "rsi_overbought"},
		{Ticker: "9984.T", Kind: "bb_lower_break"},
	}
	srv := httptest.NewServer(NewRouter(Options{Service: svc, Alerts: alerts}))
	defer srv.Close()

	got := doList(t, srv.URL+"/api/watchlist/alerts?limit=1")
	require.Len(t, got, 1)
	assert.Equal(t, "rsi_overbought", got[0]["kind"])

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/watchlist/alerts?limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Without a scanner the list is empty, not null.
	empty := newServer(t, &stubMarket{}, nil)
	assert.Empty(t, doList(t, empty.URL+"/api/watchlist/alerts"))
}

// ────────────────────────────────────────────────────────────
// Analysis chat
// ────────────────────────────────────────────────────────────

func TestChat(t *testing.T) {
	srv := newServer(t, &stubMarket{bars: bars(60)}, stubChat{})

	resp, body := do(t, http.MethodPost, srv.URL+"/api/analysis/chat", `{"message":"hi","ticker":"7203.T"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok: hi", body["response"])
	assert.Equal(t, "conv-1", body["conversation_id"])
	ind, ok := body["indicators"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "7203.T", ind["ticker"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/analysis/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["indicators"])
}

func TestChat_ErrorMapping(t *testing.T) {
	unconfigured := newServer(t, &stubMarket{}, stubChat{err: llm.ErrNotConfigured})
	resp, body := do(t, http.MethodPost, unconfigured.URL+"/api/analysis/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "ANTHROPIC_API_KEY is not set", body["detail"])

	upstream := newServer(t, &stubMarket{}, stubChat{err: fmt.Errorf("%w: status 529", llm.ErrUpstream)})
	resp, body = do(t, http.MethodPost, upstream.URL+"/api/analysis/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "LLM API error: status 529", body["detail"])
}

// ────────────────────────────────────────────────────────────
// Middleware
// ────────────────────────────────────────────────────────────

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"internal server error"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:8501"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/trade/", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8501", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClassify_Unknown(t *testing.T) {
	code, detail := classify(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", detail)
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/model"
)

func f64(v float64) *float64 { return &v }

// ────────────────────────────────────────────────────────────
// Context building
// ────────────────────────────────────────────────────────────

func TestBuildContext_Full(t *testing.T) {
	rec := model.IndicatorRecord{
		Date:        "2024-03-01",
		RSI14:       f64(65.12),
		MACD:        f64(12.5),
		MACDSignal:  f64(10.1),
		MACDHist:    f64(2.4),
		BBPosition:  f64(0.812),
		SMA20:       f64(2701.5),
		SMA50:       f64(2650),
		VolumeRatio: f64(1.35),
	}
	stats := &model.TradeStats{TotalTrades: 4, Wins: 3, Losses: 1, WinRate: 75, TotalPnL: 420.5, AvgPnLPct: 2.1}

	got := BuildContext("7203.T", rec, stats)
	want := strings.Join([]string{
		"## 7203.T テクニカルデータ",
		"- データ日付: 2024-03-01",
		"- RSI(14): 65.12",
		"- MACD: 12.5 / Signal: 10.1",
		"- BB位置: 0.812 (0=下限, 1=上限)",
		"- 出来高倍率(vs 20日平均): 1.35x",
		"- SMA20: 2701.5 / SMA50: 2650",
		"",
		"## 過去のトレード実績",
		"- total_trades: 4",
		"- open_positions: 0",
		"- wins: 3",
		"- losses: 1",
		"- win_rate: 75",
		"- total_pnl: 420.5",
		"- avg_pnl_pct: 2.1",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestBuildContext_MissingSMA50(t *testing.T) {
	rec := model.IndicatorRecord{Date: "2024-03-01", SMA20: f64(100), MACD: f64(1)}
	got := BuildContext("X", rec, nil)
	assert.Contains(t, got, "- SMA20: 100 / SMA50: N/A")
	assert.Contains(t, got, "- MACD: 1 / Signal: N/A")
	assert.NotContains(t, got, "トレード実績")
}

func TestBuildContext_Empty(t *testing.T) {
	assert.Empty(t, BuildContext("X", model.IndicatorRecord{}, nil))
	assert.Empty(t, BuildContext("", model.IndicatorRecord{RSI14: f64(50)}, nil))
}

func TestComposeMessage(t *testing.T) {
	assert.Equal(t, "hi", ComposeMessage("", "hi"))
	assert.Equal(t, "ctx\n\n---\n\nhi", ComposeMessage("ctx", "hi"))
}

// ────────────────────────────────────────────────────────────
// Conversation store
// ────────────────────────────────────────────────────────────

func TestConversations_Evicts(t *testing.T) {
	c := NewConversations(2)
	c.Append("a", Message{Role: "user", Content: "1"})
	c.Append("b", Message{Role: "user", Content: "2"})
	c.Append("c", Message{Role: "user", Content: "3"})

	assert.Equal(t, 2, c.Len())
	assert.Empty(t, c.History("a"))
	assert.Len(t, c.History("c"), 1)
}

func TestConversations_HistoryIsCopy(t *testing.T) {
	c := NewConversations(4)
	c.Append("a", Message{Role: "user", Content: "1"})
	h := c.History("a")
	h[0].Content = "mutated"
	assert.Equal(t, "1", c.History("a")[0].Content)
}

// ────────────────────────────────────────────────────────────
// Messages API client
// ────────────────────────────────────────────────────────────

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// sentRequest is the Messages API request body as it reached the server.
type sentRequest struct {
	Model     string      `json:"model"`
	MaxTokens int         `json:"max_tokens"`
	System    []textBlock `json:"system"`
	Messages  []struct {
		Role    string      `json:"role"`
		Content []textBlock `json:"content"`
	} `json:"messages"`
}

func joinText(blocks []textBlock) string {
	var b strings.Builder
	for _, t := range blocks {
		b.WriteString(t.Text)
	}
	return b.String()
}

type fakeAnthropic struct {
	mu       sync.Mutex
	requests []sentRequest
	headers  []http.Header
	status   int
	failures int // replies with status before succeeding; 0 means always
	reply    string
}

func (f *fakeAnthropic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req sentRequest
	json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.headers = append(f.headers, r.Header.Clone())
	status := f.status
	if f.failures > 0 && len(f.requests) > f.failures {
		status = http.StatusOK
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.Header().Set("Retry-After-Ms", "1")
		w.WriteHeader(status)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       req.Model,
		"stop_reason": "end_turn",
		"content":     []map[string]string{{"type": "text", "text": f.reply}},
		"usage":       map[string]int{"input_tokens": 10, "output_tokens": 5},
	})
}

func (f *fakeAnthropic) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T, fake *fakeAnthropic, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: retries, Timeout: 5 * time.Second}, NewConversations(10), nil)
}

func TestChat_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, nil, nil)
	assert.False(t, c.Configured())
	_, _, err := c.Chat(context.Background(), "hi", "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChat_NewConversationAndFollowUp(t *testing.T) {
	fake := &fakeAnthropic{reply: "分析結果"}
	c := newTestClient(t, fake, 0)
	ctx := context.Background()

	reply, id, err := c.Chat(ctx, "どう思う？", "", "## 7203.T テクニカルデータ")
	require.NoError(t, err)
	assert.Equal(t, "分析結果", reply)
	assert.Len(t, id, 36, "uuid")

	_, id2, err := c.Chat(ctx, "続けて", id, "")
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	require.Len(t, fake.requests, 2)
	first := fake.requests[0]
	assert.Equal(t, "claude-sonnet-4-5-20250929", first.Model)
	assert.Equal(t, 2048, first.MaxTokens)
	assert.Equal(t, SystemPrompt, joinText(first.System))
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "user", first.Messages[0].Role)
	assert.Equal(t, "## 7203.T テクニカルデータ\n\n---\n\nどう思う？", joinText(first.Messages[0].Content))

	second := fake.requests[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, "assistant", second.Messages[1].Role)
	assert.Equal(t, "分析結果", joinText(second.Messages[1].Content))
	assert.Equal(t, "続けて", joinText(second.Messages[2].Content))

	h := fake.headers[0]
	assert.Equal(t, "sk-test", h.Get("X-Api-Key"))
	assert.Equal(t, "2023-06-01", h.Get("Anthropic-Version"))
}

func TestChat_UpstreamErrorLeavesHistoryUntouched(t *testing.T) {
	fake := &fakeAnthropic{status: http.StatusServiceUnavailable}
	c := newTestClient(t, fake, 0)

	_, id, err := c.Chat(context.Background(), "hi", "conv-1", "")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "overloaded_error: Overloaded")
	assert.Equal(t, "conv-1", id)
	assert.Empty(t, c.convs.History("conv-1"))
	assert.Equal(t, 1, fake.count(), "no retries configured")
}

func TestChat_RetriesOverloaded(t *testing.T) {
	fake := &fakeAnthropic{status: 529, failures: 1, reply: "ok"}
	c := newTestClient(t, fake, 2)

	reply, _, err := c.Chat(context.Background(), "hi", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 2, fake.count())
}

func TestChat_UnreachableIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: url, Timeout: time.Second}, nil, nil)
	_, _, err := c.Chat(context.Background(), "hi", "", "")
	assert.ErrorIs(t, err, ErrUpstream)
}

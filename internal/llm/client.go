// Package llm talks to the Anthropic Messages API, through the official
// SDK, on behalf of the dashboard's analysis chat.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"stockdash/internal/metrics"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("ANTHROPIC_API_KEY is not set")

	// ErrUpstream wraps failures reported by or reaching the API.
	ErrUpstream = errors.New("LLM API error")
)

// Config configures a Client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxRetries is how often a 429, 5xx or overloaded reply is retried.
	MaxRetries int
}

// Client sends chat turns to the Messages API and keeps conversation
// history between calls.
type Client struct {
	apiKey    string
	model     string
	maxTokens int64
	api       anthropic.Client
	convs     *Conversations
	metrics   *metrics.Metrics
}

// NewClient creates a client. A missing API key is allowed; Chat then
// returns ErrNotConfigured. m may be nil.
func NewClient(cfg Config, convs *Conversations, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if convs == nil {
		convs = NewConversations(0)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		api: anthropic.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
			option.WithRequestTimeout(cfg.Timeout),
			option.WithMaxRetries(cfg.MaxRetries),
		),
		convs:   convs,
		metrics: m,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

// Chat sends message, prefixed with dataContext when non-empty, as the next user
// turn of conversationID. An empty id starts a new conversation. The turn
// and the reply are recorded only when the call succeeds.
func (c *Client) Chat(ctx context.Context, message, conversationID, dataContext string) (reply, id string, err error) {
	if !c.Configured() {
		return "", "", ErrNotConfigured
	}
	id = conversationID
	if id == "" {
		id = NewID()
	}

	user := Message{Role: "user", Content: ComposeMessage(dataContext, message)}
	msgs := append(c.convs.History(id), user)

	start := time.Now()
	reply, err = c.send(ctx, msgs)
	c.metrics.ObserveLLM(time.Since(start), err)
	if err != nil {
		return "", id, err
	}

	c.convs.Append(id, user, Message{Role: "assistant", Content: reply})
	return reply, id, nil
}

func (c *Client) send(ctx context.Context, msgs []Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt}},
		Messages:  make([]anthropic.MessageParam, 0, len(msgs)),
	}
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", upstreamError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return text.String(), nil
}

// upstreamError wraps err in ErrUpstream, keeping the API's own error
// type and message when the reply carried one.
func upstreamError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil && body.Error.Message != "" {
		return fmt.Errorf("%w: %s: %s", ErrUpstream, body.Error.Type, body.Error.Message)
	}
	return fmt.Errorf("%w: status %d", ErrUpstream, apiErr.StatusCode)
}

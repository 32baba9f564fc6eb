// Package notification delivers watchlist alerts (RSI extremes, Bollinger
// band breaks) to the log, a generic webhook or Telegram.
package notification

import (
	"context"
	"errors"
	"log"
	"time"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "INFO"
	AlertWarning AlertLevel = "WARNING"
)

// Alert is one watchlist signal.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Ticker  string     `json:"ticker"`
	Kind    string     `json:"kind"` // e.g. "rsi_overbought", "bb_upper_break"
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Time    time.Time  `json:"ts"`
}

// Notifier delivers alerts.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s %s: %s", alert.Level, alert.Ticker, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to all of its notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config selects the delivery channels. The log channel is always on.
type Config struct {
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
}

// New builds the notifier for cfg.
func New(cfg Config) Notifier {
	m := Multi{NewLogNotifier()}
	if cfg.WebhookURL != "" {
		m = append(m, NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		m = append(m, NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	return m
}

// Package scanner periodically recomputes indicators for the active
// watchlist, pushes them to subscribers and raises alerts.
package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stockdash/internal/gateway"
	"stockdash/internal/markethours"
	"stockdash/internal/metrics"
	"stockdash/internal/model"
	"stockdash/internal/notification"
	"stockdash/internal/ringbuf"
)

// DefaultSpec runs every 30 minutes through the trading session, Mon–Fri,
// in exchange time. The first field is seconds.
const DefaultSpec = "0 */30 9-15 * * 1-5"

// historySize is how many delivered alerts Recent can return.
const historySize = 128

// Source supplies the watchlist and its indicators.
type Source interface {
	ListWatch(ctx context.Context) ([]model.WatchlistItem, error)
	Indicators(ctx context.Context, ticker, period string) (model.IndicatorSnapshot, error)
}

// Config configures a Scanner.
type Config struct {
	Spec       string
	Period     string // history period; empty uses the provider default
	Thresholds Thresholds
}

// Result summarises one scan.
type Result struct {
	Skipped bool
	Scanned int
	Failed  int
	Alerts  int
}

// Scanner runs the watchlist scan on a cron schedule.
type Scanner struct {
	src      Source
	pub      gateway.Publisher
	notifier notification.Notifier
	metrics  *metrics.Metrics
	spec     string
	period   string

	Cron    *cron.Cron
	now     func() time.Time
	history *ringbuf.Ring[notification.Alert]

	mu         sync.Mutex
	running    bool
	thresholds Thresholds
	sent       map[string]string // ticker|kind -> JST date last sent

	calendarWarn sync.Once
}

// New creates a Scanner. pub, n and m may be nil.
func New(cfg Config, src Source, pub gateway.Publisher, n notification.Notifier, m *metrics.Metrics) *Scanner {
	spec := cfg.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	if n == nil {
		n = notification.NewLogNotifier()
	}
	return &Scanner{
		src:        src,
		pub:        pub,
		notifier:   n,
		metrics:    m,
		spec:       spec,
		period:     cfg.Period,
		Cron:       cron.New(cron.WithSeconds(), cron.WithLocation(markethours.JST)),
		now:        time.Now,
		history:    ringbuf.New[notification.Alert](historySize),
		thresholds: cfg.Thresholds,
		sent:       make(map[string]string),
	}
}

// Start registers the scan and starts the scheduler.
func (s *Scanner) Start(ctx context.Context) error {
	if _, err := s.Cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("[scanner] scan failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("register scan %q: %w", s.spec, err)
	}
	s.Cron.Start()
	log.Printf("[scanner] started (%s JST)", s.spec)
	return nil
}

// Stop stops the scheduler and waits for a running scan to finish.
func (s *Scanner) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[scanner] stopped")
}

// SetThresholds replaces the alert thresholds; used on config reload.
func (s *Scanner) SetThresholds(th Thresholds) {
	s.mu.Lock()
	s.thresholds = th
	s.mu.Unlock()
	log.Printf("[scanner] thresholds overbought=%.0f oversold=%.0f", th.Overbought, th.Oversold)
}

// RunOnce scans the active watchlist now. Non-trading days are skipped.
// A scan already in progress makes this call a no-op.
func (s *Scanner) RunOnce(ctx context.Context) (Result, error) {
	now := s.now()
	s.metrics.SetMarketOpen(markethours.IsMarketOpen(now))

	if !markethours.HolidaysKnown(now) {
		s.calendarWarn.Do(func() {
			log.Printf("[scanner] WARNING: JPX holiday calendar ends in %d; holidays after it are scanned as trading days", markethours.HolidayCalendarEnd)
		})
	}
	if !markethours.IsTradingDay(now) {
		s.metrics.ObserveScan("skipped")
		return Result{Skipped: true}, nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.metrics.ObserveScan("skipped")
		return Result{Skipped: true}, nil
	}
	s.running = true
	th := s.thresholds
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	items, err := s.src.ListWatch(ctx)
	if err != nil {
		s.metrics.ObserveScan("error")
		return Result{}, fmt.Errorf("list watchlist: %w", err)
	}

	var res Result
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		snap, err := s.src.Indicators(ctx, item.Ticker, s.period)
		if err != nil {
			log.Printf("[scanner] %s: %v", item.Ticker, err)
			res.Failed++
			continue
		}
		res.Scanned++
		if snap.Empty() {
			continue
		}

		if s.pub != nil {
			u := gateway.Update{Ticker: snap.Ticker, Indicators: snap.IndicatorRecord, TS: now}
			if err := s.pub.Publish(ctx, u); err != nil {
				log.Printf("[scanner] publish %s: %v", snap.Ticker, err)
			}
		}

		for _, a := range Evaluate(snap.Ticker, snap.IndicatorRecord, th, now) {
			if !s.claim(a, now) {
				continue
			}
			if err := s.notifier.Send(ctx, a); err != nil {
				log.Printf("[scanner] alert %s/%s: %v", a.Ticker, a.Kind, err)
				s.release(a)
				continue
			}
			s.metrics.ObserveAlert(a.Kind)
			s.history.Push(a)
			res.Alerts++
		}
	}

	status := "ok"
	if res.Failed > 0 {
		status = "partial"
	}
	s.metrics.ObserveScan(status)
	log.Printf("[scanner] scanned=%d failed=%d alerts=%d", res.Scanned, res.Failed, res.Alerts)
	return res, nil
}

// Recent returns up to limit delivered alerts, newest first.
func (s *Scanner) Recent(limit int) []notification.Alert {
	return s.history.Newest(limit)
}

// claim reports whether a has not yet been sent today and marks it sent.
func (s *Scanner) claim(a notification.Alert, now time.Time) bool {
	key := a.Ticker + "|" + a.Kind
	day := now.In(markethours.JST).Format(model.DateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent[key] == day {
		return false
	}
	s.sent[key] = day
	return true
}

func (s *Scanner) release(a notification.Alert) {
	s.mu.Lock()
	delete(s.sent, a.Ticker+"|"+a.Kind)
	s.mu.Unlock()
}

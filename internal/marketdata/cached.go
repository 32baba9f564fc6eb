package marketdata

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"stockdash/internal/metrics"
	"stockdash/internal/model"
)

// CachedProviderConfig configures a CachedProvider.
type CachedProviderConfig struct {
	TTL         time.Duration // lifetime of cached history and info
	MinInterval time.Duration // minimum spacing between upstream calls
	MaxFailures int           // consecutive upstream failures before the breaker opens
	Cooldown    time.Duration // how long the breaker stays open
	CacheName   string        // metrics label, e.g. "memory" or "redis"
}

// CachedProvider wraps an upstream Provider with a get-or-fetch cache, a
// rate limiter and a circuit breaker. Empty results are never cached.
type CachedProvider struct {
	upstream Provider
	cache    model.SeriesCache
	ttl      time.Duration
	limiter  *rate.Limiter
	breaker  *CircuitBreaker
	metrics  *metrics.Metrics
	name     string
}

// NewCachedProvider wires upstream behind cache. m may be nil.
func NewCachedProvider(upstream Provider, cache model.SeriesCache, cfg CachedProviderConfig, m *metrics.Metrics) *CachedProvider {
	if cfg.TTL <= 0 {
		cfg.TTL = 4 * time.Hour
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.CacheName == "" {
		cfg.CacheName = "memory"
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	cb := NewCircuitBreaker(cfg.MaxFailures, cfg.Cooldown)
	cb.OnStateChange = func(from, to BreakerState) {
		log.Printf("[marketdata] circuit breaker %s → %s", from, to)
		m.SetBreakerState(int(to), to == BreakerOpen)
	}

	return &CachedProvider{
		upstream: upstream,
		cache:    cache,
		ttl:      cfg.TTL,
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  cb,
		metrics:  m,
		name:     cfg.CacheName,
	}
}

// Breaker exposes the upstream breaker for status reporting.
func (p *CachedProvider) Breaker() *CircuitBreaker { return p.breaker }

// History returns cached bars for req or fetches them.
func (p *CachedProvider) History(ctx context.Context, req Request) (model.Series, error) {
	req, err := req.Normalize()
	if err != nil {
		return model.Series{}, err
	}
	key := req.Key()
	if s, ok := p.cache.GetSeries(ctx, key); ok {
		p.metrics.ObserveCache(p.name, true)
		return s, nil
	}
	p.metrics.ObserveCache(p.name, false)

	var s model.Series
	err = p.call(ctx, "history", func(ctx context.Context) error {
		var err error
		s, err = p.upstream.History(ctx, req)
		return err
	})
	if err != nil {
		return model.Series{}, err
	}
	if s.Len() > 0 {
		p.cache.SetSeries(ctx, key, s, p.ttl)
	}
	return s, nil
}

// Info returns cached ticker metadata or fetches it.
func (p *CachedProvider) Info(ctx context.Context, ticker string) (model.TickerInfo, error) {
	ticker = NormalizeTicker(ticker)
	key := "info:" + ticker
	if info, ok := p.cache.GetInfo(ctx, key); ok {
		p.metrics.ObserveCache(p.name, true)
		return info, nil
	}
	p.metrics.ObserveCache(p.name, false)

	var info model.TickerInfo
	err := p.call(ctx, "info", func(ctx context.Context) error {
		var err error
		info, err = p.upstream.Info(ctx, ticker)
		return err
	})
	if err != nil {
		return model.TickerInfo{}, err
	}
	if !infoEmpty(info) {
		p.cache.SetInfo(ctx, key, info, p.ttl)
	}
	return info, nil
}

// Search is rate limited and guarded by the breaker but not cached.
func (p *CachedProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	var out []model.SearchResult
	err := p.call(ctx, "search", func(ctx context.Context) error {
		var err error
		out, err = p.upstream.Search(ctx, query)
		return err
	})
	return out, err
}

func (p *CachedProvider) call(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := p.breaker.Execute(ctx, fn)
	p.metrics.ObserveFetch(kind, time.Since(start), err)
	return err
}

func infoEmpty(info model.TickerInfo) bool {
	return info.Price == 0 && !info.ShortName.Valid && !info.LongName.Valid
}

// GetQuote builds the current quote for ticker.
func GetQuote(ctx context.Context, p Provider, ticker string) (model.Quote, error) {
	info, err := p.Info(ctx, ticker)
	if err != nil {
		return model.Quote{}, err
	}
	return BuildQuote(info), nil
}

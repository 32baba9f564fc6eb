package marketdata

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"stockdash/internal/model"
)

type memEntry[T any] struct {
	val     T
	expires time.Time
}

// MemoryCache is an in-process model.SeriesCache. Entries are bounded by
// count and expire after their own ttl, capped at maxTTL.
type MemoryCache struct {
	series *expirable.LRU[string, memEntry[model.Series]]
	info   *expirable.LRU[string, memEntry[model.TickerInfo]]
	now    func() time.Time
}

// NewMemoryCache creates a cache holding up to size entries of each kind.
func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryCache{
		series: expirable.NewLRU[string, memEntry[model.Series]](size, nil, maxTTL),
		info:   expirable.NewLRU[string, memEntry[model.TickerInfo]](size, nil, maxTTL),
		now:    time.Now,
	}
}

// GetSeries returns the series under key if present and fresh.
func (c *MemoryCache) GetSeries(_ context.Context, key string) (model.Series, bool) {
	e, ok := c.series.Get(key)
	if !ok || !c.now().Before(e.expires) {
		return model.Series{}, false
	}
	return e.val, true
}

// SetSeries stores s under key for ttl.
func (c *MemoryCache) SetSeries(_ context.Context, key string, s model.Series, ttl time.Duration) {
	c.series.Add(key, memEntry[model.Series]{val: s, expires: c.now().Add(ttl)})
}

// GetInfo returns the metadata under key if present and fresh.
func (c *MemoryCache) GetInfo(_ context.Context, key string) (model.TickerInfo, bool) {
	e, ok := c.info.Get(key)
	if !ok || !c.now().Before(e.expires) {
		return model.TickerInfo{}, false
	}
	return e.val, true
}

// SetInfo stores info under key for ttl.
func (c *MemoryCache) SetInfo(_ context.Context, key string, info model.TickerInfo, ttl time.Duration) {
	c.info.Add(key, memEntry[model.TickerInfo]{val: info, expires: c.now().Add(ttl)})
}

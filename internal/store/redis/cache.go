package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"stockdash/internal/model"
)

// Client implements model.SeriesCache so fetched history survives restarts
// and is shared between processes. Cache errors are logged and treated as
// misses; the provider stays the source of truth.

// GetSeries returns the cached series under key.
func (c *Client) GetSeries(ctx context.Context, key string) (model.Series, bool) {
	var s model.Series
	return s, c.getJSON(ctx, key, &s)
}

// SetSeries stores s under key for ttl.
func (c *Client) SetSeries(ctx context.Context, key string, s model.Series, ttl time.Duration) {
	c.setJSON(ctx, key, s, ttl)
}

// GetInfo returns cached ticker metadata under key.
func (c *Client) GetInfo(ctx context.Context, key string) (model.TickerInfo, bool) {
	var info model.TickerInfo
	return info, c.getJSON(ctx, key, &info)
}

// SetInfo stores info under key for ttl.
func (c *Client) SetInfo(ctx context.Context, key string, info model.TickerInfo, ttl time.Duration) {
	c.setJSON(ctx, key, info, ttl)
}

func (c *Client) getJSON(ctx context.Context, key string, out any) bool {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			log.Printf("[redis] GET %s error: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("[redis] decode %s error: %v", key, err)
		return false
	}
	return true
}

func (c *Client) setJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[redis] encode %s error: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		log.Printf("[redis] SET %s error: %v", key, err)
	}
}

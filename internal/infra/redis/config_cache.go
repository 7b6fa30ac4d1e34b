package redis

import (
	"context"
	"time"

	"device-activation/internal/infra/metrics"
)

// ConfigCache keeps system configuration values in redis for a short TTL so
// the dashboard does not hit Postgres on every read. The cache is owned by
// whoever constructs it (the process entry point), never by package state.
type ConfigCache struct {
	client *Client
	ttl    time.Duration
}

func NewConfigCache(client *Client, ttl time.Duration) *ConfigCache {
	return &ConfigCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ConfigCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, "system_config:"+key)
	if err != nil {
		if IsCacheMiss(err) {
			metrics.IncCacheRequest("system_config", "miss")
		}
		return "", false
	}
	metrics.IncCacheRequest("system_config", "hit")
	return val, true
}

func (c *ConfigCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, "system_config:"+key, value, c.ttl)
}

// Invalidate drops a key after a write so the next read refreshes from the store.
func (c *ConfigCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, "system_config:"+key)
}

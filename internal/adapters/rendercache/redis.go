// Package rendercache caches formatted message bodies so repeated inspection
// of a large payload does not re-run detection and pretty-printing.
package rendercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-silliman/svc-queue-monitor/internal/codec"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

const keyPrefix = "render:"

// RedisCache stores renderings in Redis (or KeyDB) with a TTL. Entries are
// keyed by message lookup id; a re-sent message gets a new lookup id, so
// stale renderings age out rather than being served for changed content.
type RedisCache struct {
	client *redis.Client
	expiry time.Duration
}

var _ ports.RenderCache = (*RedisCache)(nil)

func NewRedisCache(cfg config.CacheConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &RedisCache{
		client: client,
		expiry: cfg.DefaultExpiry,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, lookupID string) (*codec.Rendering, error) {
	data, err := c.client.Get(ctx, keyPrefix+lookupID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached rendering: %w", err)
	}

	var rendering codec.Rendering
	if err := json.Unmarshal(data, &rendering); err != nil {
		// A corrupt entry is dropped, not surfaced.
		_ = c.client.Del(ctx, keyPrefix+lookupID).Err()
		return nil, nil
	}

	return &rendering, nil
}

func (c *RedisCache) Set(ctx context.Context, lookupID string, rendering codec.Rendering) error {
	data, err := json.Marshal(rendering)
	if err != nil {
		return fmt.Errorf("encoding rendering: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+lookupID, data, c.expiry).Err(); err != nil {
		return fmt.Errorf("caching rendering: %w", err)
	}

	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, lookupID string) error {
	if err := c.client.Del(ctx, keyPrefix+lookupID).Err(); err != nil {
		return fmt.Errorf("invalidating rendering: %w", err)
	}

	return nil
}

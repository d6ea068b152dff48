package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewCache stores JSON encoded read models of type T. A ttl of 0 keeps
// entries until they are deleted. Redis failures are logged and treated as
// misses so callers always fall back to the database.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache[T any](client *goredis.Client, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl, logger: logger}
}

// GetMany reads keys with a single MGET. Missing and undecodable entries
// are absent from the result.
func (c *ViewCache[T]) GetMany(ctx context.Context, keys []string) map[string]T {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("View cache read failed", zap.Int("keys", len(keys)), zap.Error(err))
		return out
	}
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			c.logger.Debug("Discarding unreadable cache entry", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out[keys[i]] = v
	}
	return out
}

// SetMany writes every entry in one pipeline.
func (c *ViewCache[T]) SetMany(ctx context.Context, entries map[string]T) {
	if len(entries) == 0 {
		return
	}
	_, err := c.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for key, v := range entries {
			data, err := json.Marshal(v)
			if err != nil {
				c.logger.Warn("View cache encode failed", zap.String("key", key), zap.Error(err))
				continue
			}
			p.Set(ctx, key, data, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("View cache write failed", zap.Int("keys", len(entries)), zap.Error(err))
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("View cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

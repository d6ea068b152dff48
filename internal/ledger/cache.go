package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/monli/monli/shared/utils"
)

// BalanceCache stores derived balances under a per-user generation. Bumping
// the generation invalidates every cached balance of that user at once, and
// a fill computed under an older generation is never read again.
type BalanceCache interface {
	Load(ctx context.Context, userID string, accountIDs []string) (hits map[string]decimal.Decimal, generation int64, err error)
	Store(ctx context.Context, userID string, generation int64, balances map[string]decimal.Decimal) error
	Invalidate(ctx context.Context, userID string) error
}

// Balances is the balance surface handed to domain services: reads plus
// the post-commit invalidation hook.
type Balances interface {
	BalanceComputer
	Invalidate(ctx context.Context, userID string)
}

// NoCache adapts a BalanceComputer to Balances without caching.
func NoCache(inner BalanceComputer) Balances {
	return noCache{inner}
}

type noCache struct {
	BalanceComputer
}

func (noCache) Invalidate(context.Context, string) {}

// CachedAggregator serves balances from a BalanceCache and computes misses
// through the wrapped computer. It is a derived cache only; callers must
// Invalidate after every committed write that changes a balance.
type CachedAggregator struct {
	inner  BalanceComputer
	cache  BalanceCache
	logger *zap.Logger
}

func NewCachedAggregator(inner BalanceComputer, cache BalanceCache, logger *zap.Logger) *CachedAggregator {
	return &CachedAggregator{inner: inner, cache: cache, logger: logger}
}

func (c *CachedAggregator) ComputeBalances(ctx context.Context, userID string, accountIDs []string) (map[string]decimal.Decimal, error) {
	ids := utils.Unique(accountIDs)
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	hits, generation, err := c.cache.Load(ctx, userID, ids)
	if err != nil {
		c.logger.Warn("Balance cache unavailable, computing from ledger", zap.String("userId", userID), zap.Error(err))
		return c.inner.ComputeBalances(ctx, userID, ids)
	}

	result := make(map[string]decimal.Decimal, len(ids))
	var misses []string
	for _, id := range ids {
		if b, ok := hits[id]; ok {
			result[id] = b
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return result, nil
	}

	fresh, err := c.inner.ComputeBalances(ctx, userID, misses)
	if err != nil {
		return nil, err
	}
	for id, b := range fresh {
		result[id] = b
	}
	if len(fresh) > 0 {
		if err := c.cache.Store(ctx, userID, generation, fresh); err != nil {
			c.logger.Warn("Failed to cache balances", zap.String("userId", userID), zap.Error(err))
		}
	}
	return result, nil
}

// Invalidate drops every cached balance of userID.
func (c *CachedAggregator) Invalidate(ctx context.Context, userID string) {
	if err := c.cache.Invalidate(ctx, userID); err != nil {
		c.logger.Error("Failed to invalidate balance cache", zap.String("userId", userID), zap.Error(err))
	}
}

// RedisBalanceCache keeps balances at balance:<userId>:<generation>:<accountId>
// and the current generation at balance:gen:<userId>.
type RedisBalanceCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisBalanceCache(client *goredis.Client, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{client: client, ttl: ttl}
}

func generationKey(userID string) string {
	return "balance:gen:" + userID
}

func balanceKey(userID string, generation int64, accountID string) string {
	return fmt.Sprintf("balance:%s:%d:%s", userID, generation, accountID)
}

func (r *RedisBalanceCache) Load(ctx context.Context, userID string, accountIDs []string) (map[string]decimal.Decimal, int64, error) {
	generation, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, fmt.Errorf("failed to read balance generation: %w", err)
	}

	keys := make([]string, len(accountIDs))
	for i, id := range accountIDs {
		keys[i] = balanceKey(userID, generation, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read balances: %w", err)
	}

	hits := make(map[string]decimal.Decimal, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		b, err := decimal.NewFromString(s)
		if err != nil {
			continue
		}
		hits[accountIDs[i]] = b
	}
	return hits, generation, nil
}

func (r *RedisBalanceCache) Store(ctx context.Context, userID string, generation int64, balances map[string]decimal.Decimal) error {
	pipe := r.client.Pipeline()
	for id, b := range balances {
		pipe.Set(ctx, balanceKey(userID, generation, id), b.String(), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write balances: %w", err)
	}
	return nil
}

func (r *RedisBalanceCache) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Incr(ctx, generationKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to bump balance generation for %s: %w", userID, err)
	}
	return nil
}

// Package ratelimit implements token bucket limiters keyed by caller.
//
// Each key owns a bucket holding at most Burst tokens that refills at
// RequestsPerMinute/60 tokens per second. A request takes one token.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Burst             int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// refillPerSecond is the bucket refill rate.
func (c Config) refillPerSecond() float64 {
	return float64(c.RequestsPerMinute) / 60
}

// idleTTL is how long a bucket can sit untouched before it is full again
// and may be forgotten.
func (c Config) idleTTL() time.Duration {
	seconds := float64(c.Burst) / c.refillPerSecond()
	return time.Duration(math.Ceil(seconds)) * time.Second
}

type bucket struct {
	tokens float64
	last   time.Time
}

// MemoryLimiter keeps buckets in process memory. It is used when Redis is
// not shared between replicas and in tests.
type MemoryLimiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	config       Config
	now          func() time.Time
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewMemoryLimiter creates a limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewMemoryLimiter(config Config) *MemoryLimiter {
	rl := newMemoryLimiter(config, time.Now)
	go rl.startCleanup()
	return rl
}

func newMemoryLimiter(config Config, now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		buckets:     make(map[string]*bucket),
		config:      config.normalize(),
		now:         now,
		stopCleanup: make(chan struct{}),
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	capacity := float64(rl.config.Burst)
	b, exists := rl.buckets[key]
	if !exists {
		rl.buckets[key] = &bucket{tokens: capacity - 1, last: now}
		return true, nil
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(capacity, b.tokens+elapsed*rl.config.refillPerSecond())
		b.last = now
	}
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// startCleanup runs periodic cleanup to remove idle buckets
func (rl *MemoryLimiter) startCleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops buckets that have refilled completely; a fresh
// bucket behaves identically.
func (rl *MemoryLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.idleTTL())
	for key, b := range rl.buckets {
		if b.last.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// ActiveClients returns the number of currently tracked keys
func (rl *MemoryLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop shuts down the cleanup goroutine
func (rl *MemoryLimiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// tokenBucket refills and takes one token atomically.
// KEYS[1] bucket hash; ARGV rate per ms, capacity, now in ms, ttl in ms.
var tokenBucket = goredis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(ts))
redis.call("PEXPIRE", KEYS[1], ttl)
return allowed
`)

// RedisLimiter shares buckets between replicas through Redis.
type RedisLimiter struct {
	client *goredis.Client
	config Config
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *goredis.Client, prefix string, config Config) *RedisLimiter {
	return &RedisLimiter{client: client, config: config.normalize(), prefix: prefix, now: time.Now}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ratePerMs := rl.config.refillPerSecond() / 1000
	res, err := tokenBucket.Run(ctx, rl.client, []string{rl.prefix + key},
		ratePerMs,
		rl.config.Burst,
		rl.now().UnixMilli(),
		rl.config.idleTTL().Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	return res == 1, nil
}

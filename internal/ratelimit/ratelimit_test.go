package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(perMinute, burst int) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return newMemoryLimiter(Config{RequestsPerMinute: perMinute, Burst: burst}, clock.Now), clock
}

func drain(t *testing.T, rl Limiter, key string, n int) int {
	t.Helper()
	allowed := 0
	for i := 0; i < n; i++ {
		ok, err := rl.Allow(context.Background(), key)
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	return allowed
}

func TestMemoryLimiter_Burst(t *testing.T) {
	rl, _ := newTestLimiter(60, 5)
	assert.Equal(t, 5, drain(t, rl, "ip:1", 8))
}

func TestMemoryLimiter_Refill(t *testing.T) {
	rl, clock := newTestLimiter(60, 3)
	require.Equal(t, 3, drain(t, rl, "ip:1", 3))

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 0, drain(t, rl, "ip:1", 1), "half a token is not enough")

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 2, drain(t, rl, "ip:1", 5))

	clock.Advance(time.Hour)
	assert.Equal(t, 3, drain(t, rl, "ip:1", 5), "refill is capped at burst")
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(60, 2)
	assert.Equal(t, 2, drain(t, rl, "user:a", 4))
	assert.Equal(t, 2, drain(t, rl, "user:b", 4))
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(60, 10)
	drain(t, rl, "ip:old", 1)
	clock.Advance(20 * time.Second)
	drain(t, rl, "ip:new", 1)

	rl.cleanupStaleEntries()
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	rl, _ := newTestLimiter(60, 50)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := rl.Allow(context.Background(), "ip:shared")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestConfig_Normalize(t *testing.T) {
	c := Config{}.normalize()
	assert.Equal(t, DefaultConfig(), c)
	assert.Equal(t, 10*time.Second, c.idleTTL())
}

func TestNewMemoryLimiter_Stop(t *testing.T) {
	rl := NewMemoryLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}

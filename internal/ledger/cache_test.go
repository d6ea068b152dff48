package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/internal/ledger/ledgertest"
)

type fakeBalanceCache struct {
	mu         sync.Mutex
	generation map[string]int64
	entries    map[string]decimal.Decimal
	loadErr    error
	stores     int
}

func newFakeBalanceCache() *fakeBalanceCache {
	return &fakeBalanceCache{
		generation: map[string]int64{},
		entries:    map[string]decimal.Decimal{},
	}
}

func (f *fakeBalanceCache) key(userID string, gen int64, id string) string {
	return fmt.Sprintf("%s/%d/%s", userID, gen, id)
}

func (f *fakeBalanceCache) Load(_ context.Context, userID string, ids []string) (map[string]decimal.Decimal, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, 0, f.loadErr
	}
	gen := f.generation[userID]
	hits := map[string]decimal.Decimal{}
	for _, id := range ids {
		if b, ok := f.entries[f.key(userID, gen, id)]; ok {
			hits[id] = b
		}
	}
	return hits, gen, nil
}

func (f *fakeBalanceCache) Store(_ context.Context, userID string, gen int64, balances map[string]decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores++
	for id, b := range balances {
		f.entries[f.key(userID, gen, id)] = b
	}
	return nil
}

func (f *fakeBalanceCache) Invalidate(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation[userID]++
	return nil
}

type countingComputer struct {
	inner ledger.BalanceComputer
	calls [][]string
}

func (c *countingComputer) ComputeBalances(ctx context.Context, userID string, ids []string) (map[string]decimal.Decimal, error) {
	c.calls = append(c.calls, ids)
	return c.inner.ComputeBalances(ctx, userID, ids)
}

func TestCachedAggregator_ServesHitsAndComputesMisses(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.NewMemStore()
	store.AddAccount(owner, "a", d("100"))
	store.AddAccount(owner, "b", d("200"))
	inner := &countingComputer{inner: ledger.NewAggregator(store)}
	cache := newFakeBalanceCache()
	agg := ledger.NewCachedAggregator(inner, cache, zap.NewNop())

	first, err := agg.ComputeBalances(ctx, owner, []string{"a"})
	require.NoError(t, err)
	assertBalance(t, "100", first, "a")

	second, err := agg.ComputeBalances(ctx, owner, []string{"a", "b"})
	require.NoError(t, err)
	assertBalance(t, "100", second, "a")
	assertBalance(t, "200", second, "b")

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"a"}, inner.calls[0])
	assert.Equal(t, []string{"b"}, inner.calls[1], "only the miss is recomputed")

	_, err = agg.ComputeBalances(ctx, owner, []string{"b", "a"})
	require.NoError(t, err)
	assert.Len(t, inner.calls, 2, "fully cached read must not hit the ledger")
}

func TestCachedAggregator_InvalidateAfterWrite(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.NewMemStore()
	store.AddAccount(owner, "a", d("100"))
	cache := newFakeBalanceCache()
	agg := ledger.NewCachedAggregator(ledger.NewAggregator(store), cache, zap.NewNop())

	_, err := agg.ComputeBalances(ctx, owner, []string{"a"})
	require.NoError(t, err)

	store.Put(income("t1", "a", "50"))
	stale, err := agg.ComputeBalances(ctx, owner, []string{"a"})
	require.NoError(t, err)
	assertBalance(t, "100", stale, "a")

	agg.Invalidate(ctx, owner)
	fresh, err := agg.ComputeBalances(ctx, owner, []string{"a"})
	require.NoError(t, err)
	assertBalance(t, "150", fresh, "a")
}

func TestCachedAggregator_StaleFillIsNeverServed(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.NewMemStore()
	store.AddAccount(owner, "a", d("100"))
	cache := newFakeBalanceCache()

	// A reader loads generation 0, then a writer commits and invalidates
	// before the reader stores its result.
	_, gen, err := cache.Load(ctx, owner, []string{"a"})
	require.NoError(t, err)
	store.Put(income("t1", "a", "50"))
	require.NoError(t, cache.Invalidate(ctx, owner))
	require.NoError(t, cache.Store(ctx, owner, gen, map[string]decimal.Decimal{"a": d("100")}))

	agg := ledger.NewCachedAggregator(ledger.NewAggregator(store), cache, zap.NewNop())
	got, err := agg.ComputeBalances(ctx, owner, []string{"a"})
	require.NoError(t, err)
	assertBalance(t, "150", got, "a")
}

func TestCachedAggregator_FallsBackWhenCacheFails(t *testing.T) {
	store := ledgertest.NewMemStore()
	store.AddAccount(owner, "a", d("7"))
	cache := newFakeBalanceCache()
	cache.loadErr = errors.New("redis down")
	agg := ledger.NewCachedAggregator(ledger.NewAggregator(store), cache, zap.NewNop())

	got, err := agg.ComputeBalances(context.Background(), owner, []string{"a"})
	require.NoError(t, err)
	assertBalance(t, "7", got, "a")
	assert.Equal(t, 0, cache.stores)
}

func TestCachedAggregator_NotVisibleIsNotCached(t *testing.T) {
	store := ledgertest.NewMemStore()
	store.AddAccount(other, "theirs", d("1"))
	cache := newFakeBalanceCache()
	agg := ledger.NewCachedAggregator(ledger.NewAggregator(store), cache, zap.NewNop())

	got, err := agg.ComputeBalances(context.Background(), owner, []string{"theirs"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, cache.stores)
}

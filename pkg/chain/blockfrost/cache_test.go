package blockfrost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
)

func TestPoolCacheEvictsLeastRecentlyUsed(t *testing.T) {
	calls := map[string]int{}
	fetch := func(_ context.Context, poolID string) (*chain.StakePool, error) {
		calls[poolID]++
		return &chain.StakePool{Bech32ID: poolID, Ticker: "T" + poolID}, nil
	}
	cache := newPoolCache(2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a", "c", "a", "b"} {
		pool, err := cache.fetchPoolMetadata(ctx, id, fetch)
		require.NoError(t, err)
		assert.Equal(t, "T"+id, pool.Ticker)
	}
	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 2, calls["b"])
	assert.Equal(t, 1, calls["c"])
	assert.Len(t, cache.cache, 2)
}

func TestPoolCacheDoesNotStoreFailures(t *testing.T) {
	failing := true
	fetch := func(_ context.Context, poolID string) (*chain.StakePool, error) {
		if failing {
			return nil, errors.New("unavailable")
		}
		return &chain.StakePool{Bech32ID: poolID}, nil
	}
	cache := newPoolCache(2)

	_, err := cache.fetchPoolMetadata(context.Background(), "a", fetch)
	require.Error(t, err)
	assert.Empty(t, cache.cache)

	failing = false
	pool, err := cache.fetchPoolMetadata(context.Background(), "a", fetch)
	require.NoError(t, err)
	assert.Equal(t, "a", pool.Bech32ID)
}

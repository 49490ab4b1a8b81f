package blockfrost

import (
	"context"
	"sync"

	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
)

// fetchPoolMetadataFunc is a function to fetch pool metadata
type fetchPoolMetadataFunc func(context.Context, string) (*chain.StakePool, error)

// poolCache allows fetching pool metadata by making use of a
// cache. The cache stores a specified number of pool metadata and
// evicts the least recently used entry first.
type poolCache struct {
	size        int
	latestPools []string
	cache       map[string]chain.StakePool
	lock        sync.Mutex
}

// newPoolCache creates a new pool cache of a given size.
func newPoolCache(cacheSize int) *poolCache {
	return &poolCache{
		size:        cacheSize,
		latestPools: []string{},
		cache:       map[string]chain.StakePool{},
	}
}

// touch marks the given pool ID as the most recently used one.
func (p *poolCache) touch(poolID string) {
	for i, pID := range p.latestPools {
		if pID == poolID {
			p.latestPools = append(p.latestPools[:i], p.latestPools[i+1:]...)
			break
		}
	}
	p.latestPools = append(p.latestPools, poolID)
}

// registerPool stores the given pool in the cache. The least recently used
// entry is deleted, if the cache is full.
func (p *poolCache) registerPool(poolID string, pool chain.StakePool) {
	if _, found := p.cache[poolID]; !found && len(p.cache) >= p.size && len(p.latestPools) > 0 {
		delete(p.cache, p.latestPools[0])
		p.latestPools = p.latestPools[1:]
	}
	p.cache[poolID] = pool
	p.touch(poolID)
}

// fetchPoolMetadata fetches the metadata of the pool with the given ID. If
// the metadata is cached, then the cached metadata will be returned. If it
// isn't in the cache, then the given function 'f' will be called to fetch
// the metadata. Failed fetches aren't cached.
//
// An error will be returned, if the metadata couldn't be fetched.
func (p *poolCache) fetchPoolMetadata(ctx context.Context, poolID string,
	f fetchPoolMetadataFunc) (*chain.StakePool, error) {
	p.lock.Lock()
	pool, found := p.cache[poolID]
	if found {
		p.touch(poolID)
		p.lock.Unlock()
		return &pool, nil
	}
	p.lock.Unlock()

	fetched, err := f(ctx, poolID)
	if err != nil {
		return nil, err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.registerPool(poolID, *fetched)
	return fetched, nil
}

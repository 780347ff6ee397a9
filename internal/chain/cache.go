package chain

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

type ttlCache[V any] struct {
	ttl   time.Duration
	mu    sync.RWMutex
	store *lru.Cache[string, cacheEntry[V]]
}

func newTTLCache[V any](maxEntries int, ttl time.Duration) *ttlCache[V] {
	if maxEntries <= 0 {
		return nil
	}
	store, _ := lru.New[string, cacheEntry[V]](maxEntries)
	return &ttlCache[V]{ttl: ttl, store: store}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	entry, ok := c.store.Get(key)
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		c.mu.Lock()
		c.store.Remove(key)
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) add(key string, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.store.Add(key, cacheEntry[V]{value: value, storedAt: time.Now()})
	c.mu.Unlock()
}

// CachedReader memoizes holdings and token-id reads for the display
// endpoints. Claims must not use it: the engine re-derives holdings fresh
// at claim time.
type CachedReader struct {
	inner    HoldingsReader
	holdings *ttlCache[map[string]int64]
	tokenIDs *ttlCache[[]int64]
}

func NewCachedReader(inner HoldingsReader, maxEntries int, ttl time.Duration) *CachedReader {
	return &CachedReader{
		inner:    inner,
		holdings: newTTLCache[map[string]int64](maxEntries, ttl),
		tokenIDs: newTTLCache[[]int64](maxEntries, ttl),
	}
}

func (r *CachedReader) GetHoldings(ctx context.Context, wallet string) (map[string]int64, error) {
	if cached, ok := r.holdings.get(wallet); ok {
		return cached, nil
	}
	holdings, err := r.inner.GetHoldings(ctx, wallet)
	if err != nil {
		return nil, err
	}
	r.holdings.add(wallet, holdings)
	return holdings, nil
}

func (r *CachedReader) GetTokenIDs(ctx context.Context, wallet, collection string) ([]int64, error) {
	key := wallet + ":" + collection
	if cached, ok := r.tokenIDs.get(key); ok {
		return cached, nil
	}
	ids, err := r.inner.GetTokenIDs(ctx, wallet, collection)
	if err != nil {
		return nil, err
	}
	r.tokenIDs.add(key, ids)
	return ids, nil
}

package upstream

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Cache stores response bodies for a bounded time. Implementations treat
// their own failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// CachedFetcher wraps a Fetcher with a response cache.
type CachedFetcher struct {
	inner   Fetcher
	cache   Cache
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner Fetcher, cache Cache, ttl time.Duration, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{inner: inner, cache: cache, ttl: ttl, metrics: metrics}
}

func (c *CachedFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.cache.Get(ctx, url); ok {
		c.metrics.UpstreamCache.WithLabelValues("hit").Inc()
		return body, nil
	}
	c.metrics.UpstreamCache.WithLabelValues("miss").Inc()

	body, err := c.inner.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	// Errors are never cached so the next request retries the source.
	c.cache.Set(ctx, url, body, c.ttl)
	return body, nil
}

// MemoryCache is a thread-safe LRU cache with per-entry expiry. The front
// of order is the most recently used entry.
type MemoryCache struct {
	maxEntries int
	clock      clockwork.Clock

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

type cacheItem struct {
	url       string
	body      []byte
	expiresAt time.Time
}

// NewMemoryCache creates an LRU cache holding at most maxEntries bodies.
func NewMemoryCache(maxEntries int, clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		clock:      clock,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*cacheItem)
	if !c.clock.Now().Before(item.expiresAt) {
		c.drop(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return item.body, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(ttl)
	if el, ok := c.items[key]; ok {
		item := el.Value.(*cacheItem)
		item.body, item.expiresAt = value, expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&cacheItem{url: key, body: value, expiresAt: expiresAt})
	for c.order.Len() > c.maxEntries {
		c.drop(c.order.Back())
	}
}

// Len returns the number of cached entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) drop(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*cacheItem).url)
}

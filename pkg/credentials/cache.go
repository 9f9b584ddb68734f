package credentials

import (
	"context"
	"sync"
	"time"
)

type cacheItem[T any] struct {
	value     T
	fetchedAt time.Time
	expiresAt time.Time // zero means the entry lives until invalidation or restart
}

func (it cacheItem[T]) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// fetchState tracks one in-flight fetch. val and err may only be read after
// done is closed.
type fetchState[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Cache is a thread-safe TTL cache with per-key fetch deduplication. For any
// key there is at most one in-flight fetch at a time; concurrent callers for
// the same unresolved key share that fetch's result, while different keys
// never block each other. Failed fetches are never cached.
//
// A defaultTTL of zero or less disables time-based expiry: entries stay valid
// until Bust or process restart.
type Cache[T any] struct {
	mu       sync.RWMutex
	data     map[string]cacheItem[T]
	inflight map[string]*fetchState[T]
	ttl      time.Duration
}

// NewCache creates a new TTL-based in-memory cache.
func NewCache[T any](defaultTTL time.Duration) *Cache[T] {
	return &Cache[T]{
		data:     make(map[string]cacheItem[T]),
		inflight: make(map[string]*fetchState[T]),
		ttl:      defaultTTL,
	}
}

// Get returns a cached value if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	if item.expired(time.Now()) {
		// Remove lazily, but only if the entry has not been replaced by a
		// fresher fetch in the meantime.
		c.mu.Lock()
		if cur, ok := c.data[key]; ok && cur.fetchedAt.Equal(item.fetchedAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	return item.value, true
}

// GetOrFetch returns the cached value for key, or resolves it through fetch.
// When several goroutines miss on the same key at once, exactly one fetch
// runs; the rest block until it settles and share its result. Waiters honor
// ctx cancellation, which abandons the wait but does not cancel the fetch
// for the caller that owns it.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	// Re-check under the write lock: another caller may have resolved the
	// key between the fast-path miss and here.
	if item, ok := c.data[key]; ok && !item.expired(time.Now()) {
		c.mu.Unlock()
		return item.value, nil
	}
	if fl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.val, fl.err
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
	fl := &fetchState[T]{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	val, err := fetch(ctx)

	c.mu.Lock()
	// Only the still-registered fetch may populate the cache: Bust detaches
	// in-flight fetches, so a fetch that raced an invalidation resolves its
	// waiters but leaves no cache entry behind.
	if c.inflight[key] == fl {
		delete(c.inflight, key)
		if err == nil {
			now := time.Now()
			item := cacheItem[T]{value: val, fetchedAt: now}
			if c.ttl > 0 {
				item.expiresAt = now.Add(c.ttl)
			}
			c.data[key] = item
		}
	}
	c.mu.Unlock()

	fl.val, fl.err = val, err
	close(fl.done)
	return val, err
}

// Put inserts or overwrites a cache entry with the default TTL.
func (c *Cache[T]) Put(key string, value T) {
	now := time.Now()
	item := cacheItem[T]{value: value, fetchedAt: now}
	if c.ttl > 0 {
		item.expiresAt = now.Add(c.ttl)
	}
	c.mu.Lock()
	c.data[key] = item
	c.mu.Unlock()
}

// Bust removes the entry for key and detaches any in-flight fetch, so a
// fetch begun before the invalidation can never repopulate the cache. Its
// already-blocked waiters still receive its result; any caller arriving
// after Bust starts a fresh fetch.
func (c *Cache[T]) Bust(key string) {
	c.mu.Lock()
	delete(c.data, key)
	delete(c.inflight, key)
	c.mu.Unlock()
}

// Len returns the number of live (non-expired) entries.
func (c *Cache[T]) Len() int {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, item := range c.data {
		if !item.expired(now) {
			n++
		}
	}
	return n
}

// StartCleaner periodically removes expired cache entries.
func (c *Cache[T]) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-stop:
			return
		}
	}
}

func (c *Cache[T]) cleanupExpired() {
	now := time.Now()
	c.mu.Lock()
	for k, v := range c.data {
		if v.expired(now) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
}

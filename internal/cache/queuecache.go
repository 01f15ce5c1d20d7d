// Package cache holds the process-wide queue cache that absorbs the
// hot-path lookups the receive and publish paths make on every request.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/mqs/internal/mqs"
)

// TTL is how long a cached queue record is trusted before it is treated
// as a miss again.
const TTL = 10 * time.Second

type entry struct {
	queue      *mqs.Queue
	insertedAt time.Time
}

// Fetcher looks a queue up from the repository on a cache miss.
type Fetcher func(ctx context.Context, name string) (*mqs.Queue, error)

// QueueCache is a process-wide mapping queue_name -> (queue, inserted_at)
// with a fixed TTL. It is used only on the receive and publish hot paths;
// queue mutations bypass it entirely rather than invalidating it,
// tolerating staleness bounded by TTL.
type QueueCache struct {
	mu      sync.Mutex
	entries map[string]entry

	hits   uint64
	misses uint64
}

// NewQueueCache returns an empty, ready-to-use QueueCache.
func NewQueueCache() *QueueCache {
	return &QueueCache{entries: make(map[string]entry)}
}

// Lookup resolves name via the cache, falling back to fetch on a miss.
// If the cache's exclusive region is unavailable (another goroutine holds
// it), Lookup bypasses the cache entirely and calls fetch directly —
// a cache-unavailable condition never fails the request.
func (c *QueueCache) Lookup(ctx context.Context, name string, fetch Fetcher) (*mqs.Queue, error) {
	e, found, bypassed := c.read(name)
	if bypassed {
		return fetch(ctx, name)
	}
	if found && time.Since(e.insertedAt) <= TTL {
		atomic.AddUint64(&c.hits, 1)
		return e.queue.Clone(), nil
	}
	atomic.AddUint64(&c.misses, 1)

	q, err := fetch(ctx, name)
	if err != nil || q == nil {
		return q, err
	}
	c.tryStore(name, q)
	return q, nil
}

func (c *QueueCache) read(name string) (e entry, found bool, bypassed bool) {
	if !c.mu.TryLock() {
		return entry{}, false, true
	}
	e, found = c.entries[name]
	c.mu.Unlock()
	return e, found, false
}

// tryStore saves a fresh lookup result if the lock is immediately
// available; otherwise it silently drops the update, consistent with
// "never fail a request on cache unavailability".
func (c *QueueCache) tryStore(name string, q *mqs.Queue) {
	if !c.mu.TryLock() {
		return
	}
	c.entries[name] = entry{queue: q.Clone(), insertedAt: time.Now()}
	c.mu.Unlock()
}

// Stats returns the cumulative hit/miss counts, for the /metrics endpoint.
func (c *QueueCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

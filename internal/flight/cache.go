// Package flight provides a memoizing cache that suppresses duplicate calls
// for the same key.
package flight

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tripmill/tripmill/internal/gate"
	"github.com/tripmill/tripmill/internal/guard"
)

// Func is the type for a cache's fetch function.
type Func[K comparable, V any] func(context.Context, K) (V, error)

// Cache lazily computes and stores the results of an expensive fetch, keyed by
// a comparable value, with two guarantees under concurrent use:
//
//   - Single flight: at most one fetch for a given key is in flight at a time.
//     Concurrent callers for an unresolved key await the one in-flight fetch
//     rather than starting their own.
//
//   - No poisoning: only successful results are stored. A failed fetch
//     delivers its error to every caller awaiting that key, then clears the
//     way for a later call to fetch the key afresh.
//
// An optional [gate.Gate] bounds the number of fetches in flight across all
// keys, independent of how many callers are blocked in GetOrFetch. Callers
// awaiting a key that is already pending never consume gate capacity.
type Cache[K comparable, V any] struct {
	fetch Func[K, V]
	gate  *gate.Gate

	// mu guards both maps. A key is in at most one of them at a time, and only
	// the goroutine that inserted a call into pending may move the key to
	// resolved or remove it.
	mu       sync.Mutex
	resolved map[K]V
	pending  map[K]*call[V]

	hits    atomic.Uint64
	fetches atomic.Uint64
}

// call is the one in-flight fetch for a key, shared by every caller awaiting
// its result. value and err must not be read before done is closed.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// NewCache creates a Cache that fetches values with fn. If g is non-nil, the
// cache acquires a permit from g around every underlying fetch.
func NewCache[K comparable, V any](g *gate.Gate, fn Func[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		fetch:    fn,
		gate:     g,
		resolved: make(map[K]V),
		pending:  make(map[K]*call[V]),
	}
}

// GetOrFetch returns the value for key, fetching it if no successful fetch has
// completed yet.
//
// If another caller's fetch for key is already in flight, GetOrFetch awaits
// that fetch and shares its result. ctx only limits this caller's wait: a
// caller that gives up does not cancel a fetch that other callers may still be
// awaiting.
func (c *Cache[K, V]) GetOrFetch(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	if value, ok := c.resolved[key]; ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return value, nil
	}
	if cl, ok := c.pending[key]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.value, cl.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	// No result and no fetch in flight: this caller becomes the sole fetcher.
	cl := &call[V]{done: make(chan struct{})}
	c.pending[key] = cl
	c.mu.Unlock()

	cl.value, cl.err = c.fetchOne(ctx, key)

	c.mu.Lock()
	delete(c.pending, key)
	if cl.err == nil {
		c.resolved[key] = cl.value
	}
	c.mu.Unlock()
	close(cl.done)

	return cl.value, cl.err
}

// fetchOne performs the one underlying fetch for a key, within the gate's
// capacity when a gate is configured. A panicking fetch surfaces as an error
// so that waiters on the key are always woken.
func (c *Cache[K, V]) fetchOne(ctx context.Context, key K) (V, error) {
	return guard.Resolve(func() (V, error) {
		if c.gate != nil {
			permit, err := c.gate.Acquire(ctx)
			if err != nil {
				var zero V
				return zero, err
			}
			defer permit.Release()
		}
		c.fetches.Add(1)
		return c.fetch(ctx, key)
	})
}

// Stats conveys counts of cache activity since creation.
type Stats struct {
	// Hits is the count of GetOrFetch calls answered from a stored result.
	Hits uint64
	// Fetches is the count of underlying fetch invocations.
	Fetches uint64
	// Resolved is the count of keys with a stored result.
	Resolved uint64
}

// Stats returns the [Stats] for the cache as of the time of the call.
func (c *Cache[K, V]) Stats() Stats {
	var stats Stats
	stats.Hits = c.hits.Load()
	stats.Fetches = c.fetches.Load()
	c.mu.Lock()
	stats.Resolved = uint64(len(c.resolved))
	c.mu.Unlock()
	return stats
}

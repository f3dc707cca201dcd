// Package cache provides the in-process content-addressable caches that sit in
// front of the expensive analysis collaborators.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the value for a key that is not cached yet.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// Cache is a named, TTL-aware cache keyed by content fingerprint. GetOrCompute
// guarantees at most one concurrent computation per key: concurrent callers for
// the same key attach to the first caller's in-flight computation instead of
// invoking the compute function again.
//
// Counting discipline: a lookup that finds an entry counts one hit, a caller
// that attaches to another caller's computation counts one hit, and the caller
// whose computation actually runs counts one miss. Failed computations store
// nothing and the next caller computes again.
//
// Concurrency: methods are safe for concurrent use.
type Cache[V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time // injectable clock for tests

	mu      sync.Mutex
	entries map[string]entry[V]
	flight  singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[V any] struct {
	value  V
	expiry time.Time // zero means no expiry
}

// Options groups constructor options for New.
type Options struct {
	// Name identifies the cache in stats output and logs.
	Name string
	// TTL is the per-entry time to live. Zero or negative means entries never expire.
	TTL time.Duration
	// Now is an injectable clock; defaults to time.Now.
	Now func() time.Time
}

// New creates a new Cache with the given options.
func New[V any](opts Options) *Cache[V] {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Cache[V]{
		name:    opts.Name,
		ttl:     opts.TTL,
		now:     nowFn,
		entries: make(map[string]entry[V]),
	}
}

// Name returns the cache's name.
func (c *Cache[V]) Name() string {
	return c.name
}

// Lookup returns the cached value for key if present and not expired,
// counting one hit. A lookup that finds nothing counts nothing: the miss is
// attributed to whichever caller ends up computing the value.
func (c *Cache[V]) Lookup(key string) (V, bool) {
	v, ok := c.peek(key)
	if ok {
		c.hits.Add(1)
	}
	return v, ok
}

// peek is Lookup without counting.
func (c *Cache[V]) peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !ent.expiry.IsZero() && c.now().After(ent.expiry) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return ent.value, true
}

// Set stores a value under key, stamping the configured TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.entries[key] = entry[V]{value: value, expiry: exp}
}

// GetOrCompute returns the cached value for key, computing and storing it if
// absent. The bool result reports whether the value was served from cache (or
// from another caller's in-flight computation) rather than computed by this
// call. On compute failure nothing is stored and the error is returned to
// every attached caller.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[V]) (V, bool, error) {
	if v, ok := c.Lookup(key); ok {
		return v, true, nil
	}

	// computed is only set by the closure below, and singleflight runs the
	// closure of exactly one caller per flight. A caller whose closure never
	// ran (or ran but found a raced-in entry) was served by the cache.
	var computed bool
	res, err, _ := c.flight.Do(key, func() (any, error) {
		// A concurrent flight may have landed between the lookup above and
		// this call; serve its result instead of recomputing. The hit is
		// counted below alongside attached callers.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		c.misses.Add(1)
		computed = true
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	if !computed {
		// Attached to another caller's computation, or raced with one.
		c.hits.Add(1)
	}
	v, ok := res.(V)
	if !ok {
		var zero V
		return zero, false, nil
	}
	return v, !computed, nil
}

// Stats is a snapshot of the cache's counters.
type Stats struct {
	Name    string
	Entries int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns a snapshot of entry count and hit/miss counters. HitRate is 0
// when no lookups have been recorded yet.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Name:    c.name,
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
	}
}

// Clear atomically resets entries and counters. In-flight computations
// complete normally but their results are not guaranteed to remain cached.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yourusername/matchcast/internal/metrics"
)

// Keyed is a typed cache over a Store. Values are JSON encoded so that every
// reader gets its own copy. Concurrent writes to one key are last-writer-wins.
type Keyed[V any] struct {
	name   string
	store  Store
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewKeyed creates a typed cache. name namespaces keys and labels metrics.
func NewKeyed[V any](name string, store Store, ttl time.Duration) *Keyed[V] {
	return &Keyed[V]{name: name, store: store, ttl: ttl}
}

// Name returns the cache name.
func (c *Keyed[V]) Name() string {
	return c.name
}

// Get returns the cached value for key.
func (c *Keyed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return c.Lookup(ctx, key, nil)
}

// Lookup returns the cached value only if fresh reports it usable. A stale
// entry counts as a miss and is left for the caller to overwrite.
func (c *Keyed[V]) Lookup(ctx context.Context, key string, fresh func(V) bool) (V, bool, error) {
	var zero V

	raw, err := c.store.Get(ctx, c.fullKey(key))
	if errors.Is(err, ErrNotCached) {
		c.record(false)
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		// A corrupt entry is treated as absent and rebuilt.
		c.record(false)
		return zero, false, nil
	}

	if fresh != nil && !fresh(v) {
		c.record(false)
		return zero, false, nil
	}

	c.record(true)
	return v, true, nil
}

// Set stores v under key, replacing any previous entry.
func (c *Keyed[V]) Set(ctx context.Context, key string, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s cache entry: %w", c.name, err)
	}
	return c.store.Set(ctx, c.fullKey(key), raw, c.ttl)
}

// Invalidate removes key.
func (c *Keyed[V]) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.fullKey(key))
}

// Clear removes every entry of this cache and resets the counters.
func (c *Keyed[V]) Clear(ctx context.Context) error {
	c.hits.Store(0)
	c.misses.Store(0)
	return c.store.DeletePrefix(ctx, c.name+":")
}

// Stats returns cache statistics
func (c *Keyed[V]) Stats() (hits, misses uint64, ratio float64) {
	hits = c.hits.Load()
	misses = c.misses.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

func (c *Keyed[V]) fullKey(key string) string {
	return c.name + ":" + key
}

func (c *Keyed[V]) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	_, _, ratio := c.Stats()
	metrics.RecordCacheLookup(c.name, hit, ratio)
}

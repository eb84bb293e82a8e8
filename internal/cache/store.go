// Package cache provides keyed caches for derived, recomputable values. They
// are kept apart from durable repositories: anything stored here may be
// dropped at any time and rebuilt from history.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrNotCached is returned by Store.Get on a miss.
var ErrNotCached = errors.New("key not cached")

// Store is the byte-level backend shared by typed caches.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// MemoryStore keeps entries in process using go-cache. A zero TTL stores
// entries without expiry.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an in-process store. cleanupInterval controls how
// often expired entries are purged.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryStore{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns the stored bytes or ErrNotCached
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, found := s.cache.Get(key)
	if !found {
		return nil, ErrNotCached
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrNotCached
	}
	return b, nil
}

// Set stores a copy of value; last writer wins
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes one key
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// DeletePrefix removes every key starting with prefix
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	for k := range s.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			s.cache.Delete(k)
		}
	}
	return nil
}

// ItemCount returns the number of entries, including expired ones not yet purged
func (s *MemoryStore) ItemCount() int {
	return s.cache.ItemCount()
}

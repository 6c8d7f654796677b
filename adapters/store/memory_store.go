package store

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is an in-memory implementation of the Store and CacheStore
// interfaces. Entries are only shared within one process.
type MemoryStore struct {
	cache  *ttlcache.Cache[string, []byte]
	prefix string
}

// NewMemoryStore creates a new in-memory store and starts its expiry loop
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	go cache.Start()

	return &MemoryStore{
		cache:  cache,
		prefix: "twofa:invalidated:",
	}
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.cache.Set(s.prefix+tokenID, []byte("1"), expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	return s.cache.Get(s.prefix+tokenID) != nil, nil
}

// Get returns the value stored under key, expired entries are reported as absent
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, false, nil
	}

	return item.Value(), true, nil
}

// Set stores value under key for ttl
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

// Close stops the expiry loop
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}

// Package cachemanager provides a typed, TTL-based in-memory cache used by the
// forge API clients to avoid refetching listings on every dashboard refresh.
package cachemanager

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/newhook/pipewatch/internal/logging"
)

// CacheManager is a typed key/value cache.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
}

// InMemoryCacheManager implements CacheManager on top of go-cache.
type InMemoryCacheManager[K comparable, V any] struct {
	name  string
	cache *gocache.Cache
}

// Compile-time check that InMemoryCacheManager implements CacheManager.
var _ CacheManager[string, string] = (*InMemoryCacheManager[string, string])(nil)

// NewInMemoryCacheManager creates a cache whose items expire after expiration
// and are purged every cleanupInterval.
func NewInMemoryCacheManager[K comparable, V any](name string, expiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{
		name:  name,
		cache: gocache.New(expiration, cleanupInterval),
	}
}

func cacheKey[K comparable](key K) string {
	return fmt.Sprintf("%v", key)
}

// Get returns the value stored under key. A value of the wrong type is
// reported as a miss.
func (m *InMemoryCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zero V
	raw, ok := m.cache.Get(cacheKey(key))
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		logging.Warn("cache value has unexpected type", "cache", m.name, "key", cacheKey(key))
		return zero, false
	}
	return v, true
}

// Set stores value under key for ttl.
func (m *InMemoryCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	m.cache.Set(cacheKey(key), value, ttl)
}

// Delete removes keys from the cache.
func (m *InMemoryCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	for _, key := range keys {
		m.cache.Delete(cacheKey(key))
	}
	return nil
}

// Package cache provides the invalidation seam between the ingestion
// pipeline and whatever caches aggregate POI data. Invalidation is an
// explicit call from the mutation paths, never an implicit hook on save.
package cache

import (
	"context"
	"sync"
	"time"
)

// Keys of the aggregate entries the pipeline invalidates on write.
const (
	KeyCategoriesWithCounts = "poi_categories_with_counts"
	KeyBatchStatistics      = "import_batch_statistics"
)

// Invalidator is called by the pipeline after committed mutations and by
// any direct mutation path (batch delete, clear, recalculation).
type Invalidator interface {
	InvalidatePOIs(ctx context.Context)
}

// Noop discards invalidations. Used when no cache layer is configured.
type Noop struct{}

func (Noop) InvalidatePOIs(context.Context) {}

// TTLCache is a small in-process cache with per-entry expiry. It
// satisfies Invalidator by dropping the POI aggregate keys.
type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
}

type entry struct {
	value   any
	expires time.Time
}

// NewTTL creates a cache whose entries expire after ttl.
func NewTTL(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (c *TTLCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(c.ttl)}
}

// Delete removes key from the cache.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePOIs drops every aggregate entry derived from POI data.
func (c *TTLCache) InvalidatePOIs(context.Context) {
	c.Delete(KeyCategoriesWithCounts)
	c.Delete(KeyBatchStatistics)
}

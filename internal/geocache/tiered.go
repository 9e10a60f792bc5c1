// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package geocache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/metrics"
	"github.com/repatlas/repatlas/internal/models"
)

// Default expiry windows for the two tiers.
const (
	// DefaultMemoryTTL bounds how long an in-memory entry is served without
	// re-consulting the persistent tier.
	DefaultMemoryTTL = 10 * time.Minute

	// DefaultPersistTTL bounds how long a persisted coordinate is trusted
	// before it is re-resolved against the external service.
	DefaultPersistTTL = 30 * 24 * time.Hour
)

// TieredCache layers a short-lived in-memory map over a durable Store.
//
// Lookup order: memory (if younger than the memory TTL) -> persistent (if
// younger than the persistent TTL, promoted into memory on hit) -> absent.
// Expired entries are treated identically to absent ones; nothing is evicted
// eagerly, stale persistent entries are simply overwritten by the next fresh
// resolution for the same key.
//
// Writes go through both tiers unconditionally. Persistent-tier failures on
// either path are logged and swallowed: the cache must never block or fail
// resolution.
//
// Safe for concurrent use by the pin pipeline and the background preloader.
// Each write is a complete, independent key insertion, so concurrent writers
// cannot corrupt state; at worst both race on a cold key and perform one
// redundant network resolution.
type TieredCache struct {
	store Store

	mu  sync.RWMutex
	hot map[string]hotEntry

	memoryTTL  time.Duration
	persistTTL time.Duration

	// now is injectable for TTL tests.
	now func() time.Time

	memoryHits     atomic.Int64
	persistentHits atomic.Int64
	misses         atomic.Int64
}

type hotEntry struct {
	coord      models.CachedCoordinate
	insertedAt time.Time
}

// Option configures a TieredCache.
type Option func(*TieredCache)

// WithMemoryTTL overrides the in-memory expiry window.
func WithMemoryTTL(ttl time.Duration) Option {
	return func(c *TieredCache) { c.memoryTTL = ttl }
}

// WithPersistTTL overrides the persistent expiry window.
func WithPersistTTL(ttl time.Duration) Option {
	return func(c *TieredCache) { c.persistTTL = ttl }
}

// WithClock overrides the time source. Tests use this to age entries.
func WithClock(now func() time.Time) Option {
	return func(c *TieredCache) { c.now = now }
}

// New creates a TieredCache over the given persistent store.
func New(store Store, opts ...Option) *TieredCache {
	c := &TieredCache{
		store:      store,
		hot:        make(map[string]hotEntry),
		memoryTTL:  DefaultMemoryTTL,
		persistTTL: DefaultPersistTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached coordinate for key, or false when the key is absent
// or expired in both tiers.
func (c *TieredCache) Get(ctx context.Context, key string) (*models.CachedCoordinate, bool) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.hot[key]
	c.mu.RUnlock()

	if ok {
		if now.Sub(entry.insertedAt) < c.memoryTTL {
			c.memoryHits.Add(1)
			metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
			coord := entry.coord
			return &coord, true
		}
		metrics.CacheLookups.WithLabelValues("memory", "expired").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
	}

	coord, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		if coord.Age(now) >= c.persistTTL {
			metrics.CacheLookups.WithLabelValues("persistent", "expired").Inc()
			c.misses.Add(1)
			return nil, false
		}
		metrics.CacheLookups.WithLabelValues("persistent", "hit").Inc()
		c.persistentHits.Add(1)
		c.promote(key, *coord, now)
		return coord, true

	case errors.Is(err, ErrNotFound):
		metrics.CacheLookups.WithLabelValues("persistent", "miss").Inc()

	default:
		// Store trouble is a miss, never a pipeline failure.
		metrics.CacheLookups.WithLabelValues("persistent", "error").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("Persistent cache read failed, treating as miss")
	}

	c.misses.Add(1)
	return nil, false
}

// Set writes the coordinate through both tiers, stamping CachedAt with the
// current time. A persistent-tier write failure is logged and dropped.
func (c *TieredCache) Set(ctx context.Context, key string, coord models.CachedCoordinate) {
	now := c.now()
	coord.CachedAt = now

	c.promote(key, coord, now)

	if err := c.store.Set(ctx, key, &coord); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Persistent cache write failed, entry kept in memory only")
	}
}

// Contains reports whether key resolves to an unexpired entry in either tier.
// Used by the preloader's cache-miss filter.
func (c *TieredCache) Contains(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// promote installs a coordinate into the in-memory tier.
func (c *TieredCache) promote(key string, coord models.CachedCoordinate, now time.Time) {
	c.mu.Lock()
	c.hot[key] = hotEntry{coord: coord, insertedAt: now}
	size := len(c.hot)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(size))
}

// Stats is a snapshot of cache performance counters.
type Stats struct {
	MemoryHits     int64 `json:"memory_hits"`
	PersistentHits int64 `json:"persistent_hits"`
	Misses         int64 `json:"misses"`
	MemoryEntries  int   `json:"memory_entries"`
}

// Stats returns current cache counters.
func (c *TieredCache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.hot)
	c.mu.RUnlock()

	return Stats{
		MemoryHits:     c.memoryHits.Load(),
		PersistentHits: c.persistentHits.Load(),
		Misses:         c.misses.Load(),
		MemoryEntries:  entries,
	}
}

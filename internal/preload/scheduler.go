// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package preload warms the coordinate cache ahead of user demand.
//
// The scheduler extracts the same location groups the pin pipeline would,
// drops everything already cached, and resolves the remainder in small
// paced batches. It is gentler than the user-triggered path:
// a low concurrency cap and an inter-batch delay keep background work from
// starving foreground requests or hammering the external service.
package preload

import (
	"context"
	"sync"
	"time"

	"github.com/repatlas/repatlas/internal/location"
	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/metrics"
	"github.com/repatlas/repatlas/internal/models"
)

// Defaults for opportunistic background work.
const (
	DefaultMaxConcurrentRequests = 2
	DefaultDelayBetweenBatches   = 300 * time.Millisecond
)

// State is the scheduler's lifecycle state.
type State string

// Scheduler states. Transitions: idle -> preloading -> idle.
const (
	StateIdle       State = "idle"
	StatePreloading State = "preloading"
)

// Config controls background preloading. Updated at runtime via
// UpdateConfig; read at the start of each run.
type Config struct {
	// MaxConcurrentRequests is the batch size for background resolution.
	MaxConcurrentRequests int `json:"max_concurrent_requests"`

	// DelayBetweenBatches paces consecutive batches.
	DelayBetweenBatches time.Duration `json:"delay_between_batches"`

	// Enabled gates all background preloading.
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns the default preloading configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		DelayBetweenBatches:   DefaultDelayBetweenBatches,
		Enabled:               true,
	}
}

// Resolver resolves one location to a coordinate. Satisfied by
// *geocode.Resolver. Failures are swallowed; background preloading never
// surfaces errors.
type Resolver interface {
	Resolve(ctx context.Context, city, state string) (*models.CachedCoordinate, bool)
}

// Cache is the subset of the coordinate cache the scheduler needs for its
// cache-miss filter. Satisfied by *geocache.TieredCache.
type Cache interface {
	Contains(ctx context.Context, key string) bool
}

// queuedLocation is one pending resolution.
type queuedLocation struct {
	key   string
	city  string
	state string
}

// Scheduler warms the coordinate cache in the background.
//
// All state is guarded by one mutex; Start and Stop are safe to call from
// any goroutine.
type Scheduler struct {
	resolver Resolver
	cache    Cache

	mu    sync.Mutex
	cfg   Config
	state State
	queue []queuedLocation
	wg    sync.WaitGroup
}

// NewScheduler creates an idle scheduler.
func NewScheduler(resolver Resolver, cache Cache, cfg Config) *Scheduler {
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if cfg.DelayBetweenBatches <= 0 {
		cfg.DelayBetweenBatches = DefaultDelayBetweenBatches
	}
	return &Scheduler{
		resolver: resolver,
		cache:    cache,
		cfg:      cfg,
		state:    StateIdle,
	}
}

// Start begins warming the cache for the given representatives.
//
// A no-op returning false when preloading is disabled, a run is already in
// flight, or every extracted location is already cached. Otherwise the run
// proceeds in a background goroutine and Start returns true immediately.
func (s *Scheduler) Start(ctx context.Context, reps []models.Representative) bool {
	s.mu.Lock()
	if !s.cfg.Enabled || s.state == StatePreloading {
		s.mu.Unlock()
		return false
	}

	pending := s.pendingLocations(ctx, reps)
	if len(pending) == 0 {
		s.mu.Unlock()
		logging.Debug().Msg("Nothing to preload, all locations cached")
		return false
	}

	s.state = StatePreloading
	s.queue = pending
	s.wg.Add(1)
	s.mu.Unlock()

	logging.Info().Int("locations", len(pending)).Msg("Background preloading started")
	go s.run(ctx)
	return true
}

// Stop requests cooperative termination: the queue is cleared and the state
// flips to idle immediately. In-flight resolutions are not canceled; they
// complete and populate the cache harmlessly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreloading {
		return
	}
	s.queue = nil
	s.state = StateIdle
	logging.Info().Msg("Background preloading stopped")
}

// Wait blocks until the current run's goroutine exits. Test helper; callers
// in production code rely on Stop's cooperative semantics instead.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status is a snapshot of scheduler state for the API.
type Status struct {
	State  State  `json:"state"`
	Queued int    `json:"queued"`
	Config Config `json:"config"`
}

// Status returns the current state, queue depth, and active config.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Queued: len(s.queue), Config: s.cfg}
}

// UpdateConfig replaces the scheduler configuration. Takes effect on the
// next run; an in-flight run keeps the batch size it started with.
func (s *Scheduler) UpdateConfig(cfg Config) {
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if cfg.DelayBetweenBatches <= 0 {
		cfg.DelayBetweenBatches = DefaultDelayBetweenBatches
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	logging.Info().
		Int("max_concurrent_requests", cfg.MaxConcurrentRequests).
		Dur("delay_between_batches", cfg.DelayBetweenBatches).
		Bool("enabled", cfg.Enabled).
		Msg("Preloading configuration updated")
}

// pendingLocations extracts unique locations and filters out cached ones.
// Caller holds s.mu.
func (s *Scheduler) pendingLocations(ctx context.Context, reps []models.Representative) []queuedLocation {
	groups := location.GroupByServedCity(reps)

	pending := make([]queuedLocation, 0, len(groups))
	for _, g := range groups {
		key := g.Key.String()
		if s.cache.Contains(ctx, key) {
			metrics.PreloadLocations.WithLabelValues("skipped_cached").Inc()
			continue
		}
		pending = append(pending, queuedLocation{key: key, city: g.City, state: g.State})
	}
	return pending
}

// run drains the queue in batches until empty, stopped, or ctx is done.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.mu.Lock()
	batchSize := s.cfg.MaxConcurrentRequests
	delay := s.cfg.DelayBetweenBatches
	s.mu.Unlock()

	warmed := 0
	first := true

	for {
		// The delay runs after the previous batch has fully completed, so
		// even a slow batch leaves the external service a quiet window.
		if !first && !sleepCtx(ctx, delay) {
			s.finish()
			return
		}
		first = false

		batch := s.nextBatch(batchSize)
		if len(batch) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, loc := range batch {
			wg.Add(1)
			go func(loc queuedLocation) {
				defer wg.Done()
				if _, ok := s.resolver.Resolve(ctx, loc.city, loc.state); ok {
					metrics.PreloadLocations.WithLabelValues("warmed").Inc()
					return
				}
				// Background preloading never surfaces errors to the user.
				metrics.PreloadLocations.WithLabelValues("failed").Inc()
				logging.Debug().Str("key", loc.key).Msg("Preload resolution failed")
			}(loc)
		}
		wg.Wait()
		metrics.PreloadBatches.Inc()
		warmed += len(batch)
	}

	s.finish()
	logging.Info().Int("processed", warmed).Msg("Background preloading finished")
}

// nextBatch pops up to n locations, or nothing when the run was stopped.
func (s *Scheduler) nextBatch(n int) []queuedLocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreloading || len(s.queue) == 0 {
		return nil
	}
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := s.queue[:n]
	s.queue = s.queue[n:]
	return batch
}

// finish returns the scheduler to idle.
func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.state = StateIdle
}

// sleepCtx waits for d or until ctx is done. Returns false when interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package pins turns representative records into a renderable pin list.
//
// A run filters representatives to active, placeable ones, groups them by
// normalized (city, state), resolves each distinct location through the
// geocoding resolver in parallel batches, and atomically replaces the
// previous pin list with the newly assembled one. Consumers poll State()
// for the pin list, the loading flag, and coarse per-batch progress.
package pins

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/repatlas/repatlas/internal/location"
	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/metrics"
	"github.com/repatlas/repatlas/internal/models"
)

// DefaultBatchSize is how many distinct locations are grouped per batch.
// Larger than the background preloader's concurrency cap: this path is
// user-triggered and optimizes for latency.
const DefaultBatchSize = 10

// Resolver resolves one location to a coordinate. Satisfied by
// *geocode.Resolver. A false return means "cannot be placed", not an error.
type Resolver interface {
	Resolve(ctx context.Context, city, state string) (*models.CachedCoordinate, bool)
}

// Pipeline computes map pins from representative sets.
//
// At most one run executes at a time: a Run call arriving while another run
// is in flight is suppressed (a no-op, not queued). The published state is
// only ever replaced wholesale, so consumers never observe a partially
// assembled pin list.
type Pipeline struct {
	resolver  Resolver
	batchSize int

	running atomic.Bool

	mu    sync.RWMutex
	state models.MapState
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize overrides the per-batch location count.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a Pipeline over the given resolver.
func New(resolver Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:  resolver,
		batchSize: DefaultBatchSize,
		state:     models.MapState{Pins: []models.MapPin{}},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns a snapshot of the current consumer-facing state. The pin
// list and each pin's representative list are copied, so mutating the
// snapshot never reaches the published state.
func (p *Pipeline) State() models.MapState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := p.state
	snapshot.Pins = make([]models.MapPin, len(p.state.Pins))
	copy(snapshot.Pins, p.state.Pins)
	for i := range snapshot.Pins {
		snapshot.Pins[i].Representatives = copyRepresentatives(snapshot.Pins[i].Representatives)
	}
	return snapshot
}

// copyRepresentatives clones a representative list including the nested
// served-cities slices.
func copyRepresentatives(reps []models.Representative) []models.Representative {
	out := make([]models.Representative, len(reps))
	copy(out, reps)
	for i := range out {
		cities := make([]string, len(out[i].ServedCities))
		copy(cities, out[i].ServedCities)
		out[i].ServedCities = cities
	}
	return out
}

// Running reports whether a run is currently in flight.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run executes one full aggregation pass over the given representatives.
//
// Returns false when suppressed by an in-flight run. Blocks until the run
// completes; callers wanting fire-and-forget semantics spawn it themselves.
// Unexpected panics during grouping or assembly are recovered here: the run
// ends with the loading flag cleared and the previous pins intact.
func (p *Pipeline) Run(ctx context.Context, reps []models.Representative) bool {
	if !p.running.CompareAndSwap(false, true) {
		logging.Debug().Msg("Pin aggregation already in flight, run suppressed")
		metrics.PipelineRuns.WithLabelValues("suppressed").Inc()
		return false
	}
	defer p.running.Store(false)

	runID := uuid.NewString()[:8]
	start := time.Now()
	log := logging.With().Str("component", "pins").Str("run_id", runID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Pin aggregation run panicked")
			metrics.PipelineRuns.WithLabelValues("panic").Inc()
			p.mu.Lock()
			p.state.IsLoading = false
			p.mu.Unlock()
		}
	}()

	groups := location.GroupByServedCity(reps)
	batches := chunkGroups(groups, p.batchSize)

	log.Info().
		Int("representatives", len(reps)).
		Int("locations", len(groups)).
		Int("batches", len(batches)).
		Msg("Pin aggregation started")

	p.mu.Lock()
	p.state.IsLoading = true
	p.state.Progress = models.Progress{Current: 0, Total: len(batches)}
	p.mu.Unlock()

	results := make([]*models.MapPin, len(groups))
	var completed atomic.Int64
	var unresolved atomic.Int64

	// All batches launch together; within a batch every location resolves
	// concurrently. Throttling lives in the resolver's inter-attempt delay
	// and the preloader's separate concurrency cap, not here.
	var eg errgroup.Group
	offset := 0
	for _, batch := range batches {
		batch := batch
		base := offset
		offset += len(batch)

		eg.Go(func() error {
			var wg sync.WaitGroup
			for i, group := range batch {
				wg.Add(1)
				go func(idx int, g location.Group) {
					defer wg.Done()
					coord, ok := p.resolver.Resolve(ctx, g.City, g.State)
					if !ok {
						unresolved.Add(1)
						return
					}
					results[idx] = &models.MapPin{
						ID:              g.Key.String(),
						Latitude:        coord.Latitude,
						Longitude:       coord.Longitude,
						City:            g.City,
						State:           g.State,
						Representatives: g.Representatives,
					}
				}(base+i, group)
			}
			wg.Wait()

			done := int(completed.Add(1))
			p.mu.Lock()
			p.state.Progress.Current = done
			p.mu.Unlock()
			return nil
		})
	}
	// Batch workers never return errors; Wait only synchronizes.
	_ = eg.Wait()

	pins := make([]models.MapPin, 0, len(groups))
	for _, pin := range results {
		if pin != nil {
			pins = append(pins, *pin)
		}
	}

	p.mu.Lock()
	p.state = models.MapState{
		Pins:       pins,
		IsLoading:  false,
		Progress:   models.Progress{Current: len(batches), Total: len(batches)},
		Unresolved: int(unresolved.Load()),
	}
	p.mu.Unlock()

	metrics.PipelineRuns.WithLabelValues("completed").Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	metrics.PipelinePins.Set(float64(len(pins)))
	metrics.PipelineUnresolved.Set(float64(unresolved.Load()))

	log.Info().
		Int("pins", len(pins)).
		Int64("unresolved", unresolved.Load()).
		Dur("duration", time.Since(start)).
		Msg("Pin aggregation completed")
	return true
}

// chunkGroups partitions groups into fixed-size batches, preserving order.
func chunkGroups(groups []location.Group, size int) [][]location.Group {
	if len(groups) == 0 {
		return nil
	}
	batches := make([][]location.Group, 0, (len(groups)+size-1)/size)
	for start := 0; start < len(groups); start += size {
		end := start + size
		if end > len(groups) {
			end = len(groups)
		}
		batches = append(batches, groups[start:end])
	}
	return batches
}

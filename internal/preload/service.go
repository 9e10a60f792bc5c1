// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package preload

import (
	"context"
	"time"

	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/models"
)

// DefaultWarmInterval is how often the supervised service re-fetches
// representatives and tops up the cache.
const DefaultWarmInterval = 15 * time.Minute

// Source provides the representative records to warm the cache for.
// Satisfied by reps.Source implementations.
type Source interface {
	List(ctx context.Context) ([]models.Representative, error)
}

// Service runs the scheduler periodically under supervision, so the cache is
// warm before the first user opens the map. Implements suture.Service.
type Service struct {
	scheduler *Scheduler
	source    Source
	interval  time.Duration
	name      string
}

// NewService creates a supervised periodic preloading service.
func NewService(scheduler *Scheduler, source Source, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultWarmInterval
	}
	return &Service{
		scheduler: scheduler,
		source:    source,
		interval:  interval,
		name:      "preload-scheduler",
	}
}

// Serve implements suture.Service. It warms the cache once on startup and
// then on every tick. On context cancellation it stops the scheduler
// cooperatively and waits for the run goroutine to drain.
func (s *Service) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.warm(ctx)

	for {
		select {
		case <-ctx.Done():
			s.scheduler.Stop()
			s.scheduler.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.warm(ctx)
		}
	}
}

// warm fetches representatives and hands them to the scheduler. Fetch errors
// are logged and skipped; the next tick retries.
func (s *Service) warm(ctx context.Context) {
	reps, err := s.source.List(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Preload skipped, representative fetch failed")
		return
	}
	s.scheduler.Start(ctx, reps)
}

// String implements fmt.Stringer; suture uses it to identify the service.
func (s *Service) String() string {
	return s.name
}

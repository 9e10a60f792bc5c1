// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package main is the entry point for the RepAtlas server.
//
// RepAtlas visualizes a company's sales representative network on an
// interactive map. It fetches the representative roster from the
// configured upstream, geocodes the cities each representative serves,
// and exposes the aggregated map pins over a REST API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and environment (Koanf v2)
//  2. Geocode cache: BadgerDB-backed persistent tier plus an in-memory hot tier
//  3. Geocoding resolver: Nominatim client with fallback queries and a circuit breaker
//  4. Pin pipeline: batched, concurrent resolution of representative locations
//  5. Preload scheduler: low-rate background cache warming
//  6. HTTP server: REST API plus Prometheus metrics
//
// Long-running services (HTTP server, preload warming) run under a
// suture supervisor tree so a crashed service restarts with backoff
// instead of taking the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (REPATLAS_ prefix, e.g. REPATLAS_SERVER_PORT)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Stops the preload scheduler and closes the geocode cache
//
// # Port 4326
//
// The default port 4326 references EPSG:4326 (WGS 84), the coordinate
// reference system the geocoder returns coordinates in.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/repatlas/repatlas/internal/api"
	"github.com/repatlas/repatlas/internal/config"
	"github.com/repatlas/repatlas/internal/geocache"
	"github.com/repatlas/repatlas/internal/geocode"
	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/pins"
	"github.com/repatlas/repatlas/internal/preload"
	"github.com/repatlas/repatlas/internal/reps"
	"github.com/repatlas/repatlas/internal/supervisor"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Str("cache_path", cfg.Cache.Path).
		Str("geocoder_url", cfg.Geocoder.BaseURL).
		Msg("Starting RepAtlas")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Shutdown complete")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistent cache tier. An empty path keeps everything in memory,
	// which is useful for tests and ephemeral deployments.
	var store geocache.Store
	if cfg.Cache.Path != "" {
		badgerStore, err := geocache.OpenBadgerStore(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("open geocode cache: %w", err)
		}
		store = badgerStore
	} else {
		logging.Warn().Msg("Cache path empty, coordinates will not survive restarts")
		store = geocache.NewMemoryStore()
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing geocode cache")
		}
	}()

	cache := geocache.New(store,
		geocache.WithMemoryTTL(cfg.Cache.MemoryTTL),
		geocache.WithPersistTTL(cfg.Cache.PersistTTL),
	)

	resolver := geocode.New(geocode.Config{
		BaseURL:        cfg.Geocoder.BaseURL,
		UserAgent:      cfg.Geocoder.UserAgent,
		AttemptTimeout: cfg.Geocoder.AttemptTimeout,
		AttemptDelay:   cfg.Geocoder.AttemptDelay,
		ResultLimit:    cfg.Geocoder.ResultLimit,
		CountryCodes:   cfg.Geocoder.CountryCodes,
		CountrySuffix:  cfg.Geocoder.CountrySuffix,
	}, cache)

	pipeline := pins.New(resolver, pins.WithBatchSize(cfg.Pins.BatchSize))

	scheduler := preload.NewScheduler(resolver, cache, preload.Config{
		MaxConcurrentRequests: cfg.Preload.MaxConcurrentRequests,
		DelayBetweenBatches:   cfg.Preload.DelayBetweenBatches,
		Enabled:               cfg.Preload.Enabled,
	})

	var source reps.Source
	if cfg.Upstream.URL != "" {
		source = reps.NewHTTPSource(reps.HTTPConfig{
			URL:     cfg.Upstream.URL,
			APIKey:  cfg.Upstream.APIKey,
			Timeout: cfg.Upstream.Timeout,
		})
	} else {
		logging.Warn().Msg("Upstream URL empty, serving an empty representative roster")
		source = reps.NewStaticSource(nil)
	}

	handler := api.NewHandler(pipeline, scheduler, source, cache, version)
	router := api.NewRouter(handler, api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	}))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(logging.Logger()), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if cfg.Preload.Enabled {
		tree.AddBackgroundService(preload.NewService(scheduler, source, cfg.Preload.Interval))
	}

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")

	err := tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

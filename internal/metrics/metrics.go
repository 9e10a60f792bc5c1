// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package metrics provides Prometheus instrumentation for the map data
// pipeline: geocoding requests, coordinate cache efficiency per tier,
// pipeline runs, background preloading, and the HTTP API surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Geocoding Resolver Metrics

	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_requests_total",
			Help: "Total number of external geocoding requests by query attempt and outcome",
		},
		[]string{"attempt", "status"}, // attempt: "primary", "fallback"; status: "ok", "empty", "error"
	)

	GeocodeRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geocode_request_duration_seconds",
			Help:    "Duration of external geocoding requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	GeocodeResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_resolutions_total",
			Help: "Total number of location resolutions by source",
		},
		[]string{"source"}, // "cache", "network", "absent"
	)

	// Coordinate Cache Metrics

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocache_lookups_total",
			Help: "Total number of coordinate cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: "memory", "persistent"; result: "hit", "miss", "expired", "error"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geocache_memory_entries",
			Help: "Current number of entries in the in-memory cache tier",
		},
	)

	// Pin Pipeline Metrics

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "map_pipeline_runs_total",
			Help: "Total number of pin aggregation runs by outcome",
		},
		[]string{"status"}, // "completed", "suppressed", "panic"
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "map_pipeline_duration_seconds",
			Help:    "Duration of pin aggregation runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	PipelinePins = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "map_pipeline_pins",
			Help: "Number of pins assembled by the last completed run",
		},
	)

	PipelineUnresolved = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "map_pipeline_unresolved_locations",
			Help: "Number of location groups the last completed run could not resolve",
		},
	)

	// Preloading Scheduler Metrics

	PreloadBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preload_batches_total",
			Help: "Total number of background preload batches processed",
		},
	)

	PreloadLocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preload_locations_total",
			Help: "Total number of locations processed by the background preloader",
		},
		[]string{"result"}, // "warmed", "failed", "skipped_cached"
	)

	// Circuit Breaker Metrics (external geocoding endpoint)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API Endpoint Metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one API request observation.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

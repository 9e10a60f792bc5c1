// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package geocode resolves free-text (city, state) pairs to coordinates
// through an external Nominatim-style search endpoint.
//
// The resolver is cache-first and best-effort: it tries an ordered list of
// query strings from most to least specific, accepts the first usable
// candidate, and reports "absent" rather than an error when every attempt
// fails. The external service has no rate-limit contract and is treated as
// unreliable; a circuit breaker and a per-attempt timeout keep it from
// dragging the rest of the pipeline down.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/repatlas/repatlas/internal/location"
	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/metrics"
	"github.com/repatlas/repatlas/internal/models"
)

// Defaults for the external endpoint. Every one of them is a config knob;
// these values match the product's Brazilian locale and the courtesy limits
// appropriate for a public geocoding service.
const (
	DefaultBaseURL        = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent      = "repatlas/1.0 (+https://github.com/repatlas/repatlas)"
	DefaultAttemptTimeout = 5 * time.Second
	DefaultAttemptDelay   = 200 * time.Millisecond
	DefaultResultLimit    = 5
	DefaultCountryCodes   = "br"
	DefaultCountrySuffix  = "Brasil"
)

// Config configures the resolver's external endpoint behavior.
type Config struct {
	// BaseURL is the search endpoint, e.g. Nominatim's /search.
	BaseURL string

	// UserAgent identifies this service to the external endpoint, which
	// requires a meaningful agent string for unauthenticated use.
	UserAgent string

	// AttemptTimeout bounds each individual network request.
	AttemptTimeout time.Duration

	// AttemptDelay is the wait between unsuccessful query attempts. It is
	// also the minimum spacing between consecutive outbound requests.
	AttemptDelay time.Duration

	// ResultLimit caps candidates requested per query.
	ResultLimit int

	// CountryCodes restricts results server-side ("br").
	CountryCodes string

	// CountrySuffix is appended to the most specific query string to bias
	// the external service toward the product's locale.
	CountrySuffix string
}

// withDefaults fills zero values with the package defaults.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.AttemptDelay < 0 {
		c.AttemptDelay = DefaultAttemptDelay
	}
	if c.ResultLimit <= 0 {
		c.ResultLimit = DefaultResultLimit
	}
	if c.CountryCodes == "" {
		c.CountryCodes = DefaultCountryCodes
	}
	if c.CountrySuffix == "" {
		c.CountrySuffix = DefaultCountrySuffix
	}
	return c
}

// Cache is the coordinate cache consulted before and populated after
// network resolution. Satisfied by *geocache.TieredCache.
type Cache interface {
	Get(ctx context.Context, key string) (*models.CachedCoordinate, bool)
	Set(ctx context.Context, key string, coord models.CachedCoordinate)
}

// candidate is one result row from the external endpoint. Coordinates arrive
// as strings on the wire.
type candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolver resolves (city, state) pairs to coordinates, cache-first.
//
// Concurrent resolutions of the same location key are combined into a single
// network flight; the pipeline and the preloader racing on a cold key perform
// one request, not two.
type Resolver struct {
	cfg     Config
	cache   Cache
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]candidate]
	flight  singleflight.Group
	limiter *rate.Limiter
}

// New creates a Resolver over the given cache.
func New(cfg Config, cache Cache) *Resolver {
	cfg = cfg.withDefaults()

	r := &Resolver{
		cfg:   cfg,
		cache: cache,
		client: &http.Client{
			// The per-attempt context timeout governs; this is a backstop.
			Timeout: cfg.AttemptTimeout + time.Second,
		},
		// Courtesy pacing toward the public endpoint: consecutive outbound
		// requests are spaced by at least the attempt delay, no matter
		// which resolution they belong to. A zero delay disables pacing.
		limiter: rate.NewLimiter(rate.Every(cfg.AttemptDelay), 1),
	}
	r.breaker = newBreaker("geocoder")
	return r
}

// newBreaker builds the circuit breaker guarding the external endpoint.
// Opens after a 60% failure rate across at least 10 requests; recovers
// through a half-open probe window.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]candidate] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]candidate](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Geocoder circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Resolve resolves a (city, state) pair to a coordinate.
//
// Returns (coordinate, true) on success and (nil, false) when the location
// cannot be placed. Absence is not an error: callers must treat it as "no
// pin for this location", not a failure worth surfacing.
//
// The caller's context cancels in-flight work; each network attempt is
// additionally bounded by the configured attempt timeout, whichever fires
// first aborts the request.
func (r *Resolver) Resolve(ctx context.Context, city, state string) (*models.CachedCoordinate, bool) {
	key := location.NewKey(city, state).String()

	if coord, ok := r.cache.Get(ctx, key); ok {
		metrics.GeocodeResolutions.WithLabelValues("cache").Inc()
		return coord, true
	}

	// Combine concurrent flights for the same key. The winning call's
	// result (or absence) is shared with every waiter.
	v, err, _ := r.flight.Do(key, func() (interface{}, error) {
		return r.resolveRemote(ctx, key, city, state), nil
	})
	if err != nil {
		return nil, false
	}

	coord, ok := v.(*models.CachedCoordinate)
	if !ok || coord == nil {
		metrics.GeocodeResolutions.WithLabelValues("absent").Inc()
		return nil, false
	}
	metrics.GeocodeResolutions.WithLabelValues("network").Inc()
	return coord, true
}

// resolveRemote walks the fallback query list strictly in order, waiting the
// configured delay between unsuccessful attempts. Returns nil when every
// query is exhausted.
func (r *Resolver) resolveRemote(ctx context.Context, key, city, state string) *models.CachedCoordinate {
	queries := r.queryStrings(city, state)

	for i, query := range queries {
		if i > 0 {
			if !sleepCtx(ctx, r.cfg.AttemptDelay) {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		attempt := attemptLabel(i)
		start := time.Now()
		candidates, err := r.breaker.Execute(func() ([]candidate, error) {
			return r.search(ctx, query)
		})
		metrics.GeocodeRequestDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.GeocodeRequests.WithLabelValues(attempt, "error").Inc()
			logging.Debug().
				Err(err).
				Str("query", query).
				Msg("Geocoding attempt failed, falling through")
			continue
		}
		if len(candidates) == 0 {
			metrics.GeocodeRequests.WithLabelValues(attempt, "empty").Inc()
			continue
		}
		metrics.GeocodeRequests.WithLabelValues(attempt, "ok").Inc()

		chosen := pickCandidate(candidates, state)
		coord, err := chosen.toCoordinate()
		if err != nil {
			logging.Warn().
				Err(err).
				Str("query", query).
				Msg("Malformed candidate from geocoding service, falling through")
			continue
		}

		r.cache.Set(ctx, key, *coord)
		logging.Debug().
			Str("key", key).
			Str("display_name", coord.DisplayName).
			Msg("Location resolved")
		return coord
	}

	logging.Debug().Str("key", key).Msg("Location could not be resolved by any query")
	return nil
}

// queryStrings builds the ordered fallback list, most specific first.
func (r *Resolver) queryStrings(city, state string) []string {
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	return []string{
		fmt.Sprintf("%s, %s, %s", city, state, r.cfg.CountrySuffix),
		fmt.Sprintf("%s, %s", city, state),
	}
}

// search performs one request against the external endpoint.
func (r *Resolver) search(ctx context.Context, query string) ([]candidate, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()

	if err := r.limiter.Wait(attemptCtx); err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(r.cfg.ResultLimit))
	params.Set("countrycodes", r.cfg.CountryCodes)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, r.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding request: unexpected status %d", resp.StatusCode)
	}

	var candidates []candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}
	return candidates, nil
}

// pickCandidate prefers a candidate whose display name contains the requested
// state (case-insensitive); otherwise the external service's own relevance
// ranking wins and the first candidate is taken.
func pickCandidate(candidates []candidate, state string) candidate {
	want := strings.ToLower(strings.TrimSpace(state))
	if want != "" {
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c.DisplayName), want) {
				return c
			}
		}
	}
	return candidates[0]
}

// toCoordinate parses the wire-format candidate into a coordinate, rejecting
// non-numeric and non-finite values.
func (c candidate) toCoordinate() (*models.CachedCoordinate, error) {
	lat, err := strconv.ParseFloat(c.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", c.Lat, err)
	}
	lon, err := strconv.ParseFloat(c.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", c.Lon, err)
	}

	coord := &models.CachedCoordinate{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: c.DisplayName,
	}
	if !coord.Valid() {
		return nil, fmt.Errorf("coordinate out of range: %s, %s", c.Lat, c.Lon)
	}
	return coord, nil
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

// attemptLabel names the query tier for metrics.
func attemptLabel(i int) string {
	if i == 0 {
		return "primary"
	}
	return "fallback"
}

// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/repatlas/repatlas/internal/geocache"
	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/models"
	"github.com/repatlas/repatlas/internal/pins"
	"github.com/repatlas/repatlas/internal/preload"
	"github.com/repatlas/repatlas/internal/reps"
)

// Handler serves the map data pipeline endpoints.
type Handler struct {
	pipeline  *pins.Pipeline
	scheduler *preload.Scheduler
	source    reps.Source
	cache     *geocache.TieredCache
	version   string
}

// NewHandler wires the pipeline, scheduler, representative source, and
// cache into an HTTP handler set.
func NewHandler(pipeline *pins.Pipeline, scheduler *preload.Scheduler, source reps.Source, cache *geocache.TieredCache, version string) *Handler {
	return &Handler{
		pipeline:  pipeline,
		scheduler: scheduler,
		source:    source,
		cache:     cache,
		version:   version,
	}
}

// MapPins returns the current consumer-facing pipeline state: the pin list,
// the loading flag, and coarse progress. Pins with non-finite coordinates
// are dropped so the map never receives an unplottable point.
func (h *Handler) MapPins(w http.ResponseWriter, r *http.Request) {
	state := h.pipeline.State()

	valid := make([]models.MapPin, 0, len(state.Pins))
	for _, pin := range state.Pins {
		if pin.Valid() {
			valid = append(valid, pin)
		} else {
			logging.Warn().Str("pin_id", pin.ID).Msg("Dropping pin with non-finite coordinates")
		}
	}
	state.Pins = valid

	writeJSON(w, http.StatusOK, state)
}

// refreshResponse reports whether a refresh was actually started.
type refreshResponse struct {
	Started bool `json:"started"`
}

// MapRefresh triggers a pipeline run against the representative source.
// Responds 202 immediately; the run proceeds in the background and clients
// poll MapPins for progress. Started is false when a run was already in
// flight (the at-most-one-run guard) or the upstream fetch failed.
func (h *Handler) MapRefresh(w http.ResponseWriter, r *http.Request) {
	if h.pipeline.Running() {
		writeJSON(w, http.StatusAccepted, refreshResponse{Started: false})
		return
	}

	representatives, err := h.source.List(r.Context())
	if err != nil {
		logging.Warn().Err(err).Msg("Map refresh skipped, representative fetch failed")
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "could not fetch representatives")
		return
	}

	go func() {
		// Detached from the request context: the run outlives the 202.
		h.pipeline.Run(context.WithoutCancel(r.Context()), representatives)
	}()

	writeJSON(w, http.StatusAccepted, refreshResponse{Started: true})
}

// CacheStats exposes per-tier cache counters.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// PreloadStatus returns the scheduler's state, queue depth, and config.
func (h *Handler) PreloadStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// preloadStartResponse reports whether a preload run was started.
type preloadStartResponse struct {
	Started bool `json:"started"`
}

// PreloadStart starts background cache warming from the representative
// source. A no-op when disabled, already preloading, or fully cached.
func (h *Handler) PreloadStart(w http.ResponseWriter, r *http.Request) {
	representatives, err := h.source.List(r.Context())
	if err != nil {
		logging.Warn().Err(err).Msg("Preload start skipped, representative fetch failed")
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "could not fetch representatives")
		return
	}

	started := h.scheduler.Start(context.WithoutCancel(r.Context()), representatives)
	writeJSON(w, http.StatusAccepted, preloadStartResponse{Started: started})
}

// PreloadStop requests cooperative termination of background preloading.
func (h *Handler) PreloadStop(w http.ResponseWriter, _ *http.Request) {
	h.scheduler.Stop()
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// PreloadConfig replaces the preloading configuration.
func (h *Handler) PreloadConfig(w http.ResponseWriter, r *http.Request) {
	var cfg preload.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "could not decode preload config")
		return
	}

	h.scheduler.UpdateConfig(cfg)
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health reports overall service health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: h.version})
}

// HealthLive is the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "alive", Version: h.version})
}

// HealthReady is the readiness probe. The service is ready as soon as its
// components are wired; the cache warms lazily.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready", Version: h.version})
}

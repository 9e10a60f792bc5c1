// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the HTTP handler set into a Chi route tree.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router for the given handler and middleware factory.
// A nil middleware factory falls back to secure defaults.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// Setup configures all HTTP routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS()) // global so OPTIONS preflight is handled
	r.Use(RequestLogger())

	// Health endpoints get a permissive rate limit so monitoring probes
	// are never rejected alongside the API traffic.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.middleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Map and preload endpoints.
	r.Route("/api/v1/map", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())

		r.Get("/pins", router.handler.MapPins)
		r.Post("/refresh", router.handler.MapRefresh)
		r.Get("/cache/stats", router.handler.CacheStats)

		r.Route("/preload", func(r chi.Router) {
			r.Get("/status", router.handler.PreloadStatus)
			r.Post("/start", router.handler.PreloadStart)
			r.Post("/stop", router.handler.PreloadStop)
			r.Put("/config", router.handler.PreloadConfig)
		})
	})

	// Prometheus scrape endpoint, outside the API rate limit.
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package reps is the read-only boundary to the upstream CRUD service that
// owns representative records. The map pipeline only consumes them; create,
// update, and delete live entirely upstream.
package reps

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/repatlas/repatlas/internal/models"
)

// DefaultTimeout bounds one upstream fetch.
const DefaultTimeout = 10 * time.Second

// Source provides the current representative set.
type Source interface {
	List(ctx context.Context) ([]models.Representative, error)
}

// HTTPConfig configures the upstream REST client.
type HTTPConfig struct {
	// URL is the full endpoint returning a JSON array of representatives,
	// e.g. a PostgREST-style "/rest/v1/representantes?select=*".
	URL string

	// APIKey is sent as both the apikey header and a bearer token, matching
	// the hosted backend's expectations. Optional.
	APIKey string

	// Timeout bounds each fetch. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// HTTPSource fetches representatives from the upstream REST endpoint.
type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPSource creates an upstream REST client.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// List fetches the full representative set.
func (s *HTTPSource) List(ctx context.Context) ([]models.Representative, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build representatives request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("apikey", s.cfg.APIKey)
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch representatives: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch representatives: unexpected status %d", resp.StatusCode)
	}

	var reps []models.Representative
	if err := json.NewDecoder(resp.Body).Decode(&reps); err != nil {
		return nil, fmt.Errorf("decode representatives: %w", err)
	}
	return reps, nil
}

// StaticSource serves a fixed representative set. Used in tests and in
// deployments without an upstream endpoint configured.
type StaticSource struct {
	reps []models.Representative
}

// NewStaticSource creates a source over a fixed set.
func NewStaticSource(reps []models.Representative) *StaticSource {
	return &StaticSource{reps: reps}
}

// List returns a copy of the fixed set.
func (s *StaticSource) List(_ context.Context) ([]models.Representative, error) {
	out := make([]models.Representative, len(s.reps))
	copy(out, s.reps)
	return out, nil
}

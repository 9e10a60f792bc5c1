// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package geocache stores resolved location coordinates in two tiers: a
// short-lived in-memory accelerator in front of a durable key-value store.
// The cache is a pure optimization; every failure path degrades to a miss
// so the resolution pipeline is never blocked by cache trouble.
package geocache

import (
	"context"
	"errors"

	"github.com/repatlas/repatlas/internal/models"
)

// ErrNotFound is returned by Store implementations when a key is absent.
var ErrNotFound = errors.New("geocache: key not found")

// Store is the persistent-tier interface. Implementations must treat each
// write as a complete, independent key insertion; there are no cross-key
// invariants, which is what makes lock-free sharing between the user-facing
// pipeline and the background preloader safe.
type Store interface {
	// Get retrieves the coordinate stored under key.
	// Returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (*models.CachedCoordinate, error)

	// Set stores the coordinate under key, replacing any previous value.
	Set(ctx context.Context, key string, coord *models.CachedCoordinate) error

	// ScanAll returns every stored coordinate keyed by location key.
	ScanAll(ctx context.Context) (map[string]models.CachedCoordinate, error)

	// Close releases underlying resources.
	Close() error
}

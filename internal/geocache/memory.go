// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package geocache

import (
	"context"
	"sync"

	"github.com/repatlas/repatlas/internal/models"
)

// MemoryStore is a Store kept entirely in process memory. It backs tests and
// cacheless deployments where no durable path is configured; coordinates are
// lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.CachedCoordinate
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.CachedCoordinate)}
}

// Get retrieves the coordinate stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (*models.CachedCoordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coord, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &coord, nil
}

// Set stores the coordinate under key, replacing any previous value.
func (s *MemoryStore) Set(_ context.Context, key string, coord *models.CachedCoordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = *coord
	return nil
}

// ScanAll returns a copy of every stored coordinate.
func (s *MemoryStore) ScanAll(_ context.Context) (map[string]models.CachedCoordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.CachedCoordinate, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

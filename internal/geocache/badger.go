// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package geocache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/repatlas/repatlas/internal/models"
)

// coordKeyPrefix namespaces coordinate entries inside the Badger database.
const coordKeyPrefix = "coord:"

// BadgerStore implements Store using BadgerDB for durable storage.
// Coordinates survive process restarts; expiry is enforced by the reading
// tier, not by Badger TTLs, so stale entries stay on disk until overwritten
// by a fresh resolution for the same key.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a Badger database at path and wraps it
// as a coordinate store. Badger's own logger is silenced; store activity is
// logged by the callers through the service logger.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open Badger database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get retrieves the coordinate stored under key.
func (s *BadgerStore) Get(_ context.Context, key string) (*models.CachedCoordinate, error) {
	var coord models.CachedCoordinate

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(coordKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get coordinate: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &coord)
		})
	})
	if err != nil {
		return nil, err
	}

	return &coord, nil
}

// Set stores the coordinate under key, replacing any previous value.
func (s *BadgerStore) Set(_ context.Context, key string, coord *models.CachedCoordinate) error {
	data, err := json.Marshal(coord)
	if err != nil {
		return fmt.Errorf("marshal coordinate: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(coordKeyPrefix+key), data)
	})
}

// ScanAll returns every stored coordinate keyed by location key.
func (s *BadgerStore) ScanAll(_ context.Context) (map[string]models.CachedCoordinate, error) {
	out := make(map[string]models.CachedCoordinate)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(coordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(coordKeyPrefix):])
			if err := item.Value(func(val []byte) error {
				var coord models.CachedCoordinate
				if err := json.Unmarshal(val, &coord); err != nil {
					return fmt.Errorf("unmarshal coordinate %s: %w", key, err)
				}
				out[key] = coord
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

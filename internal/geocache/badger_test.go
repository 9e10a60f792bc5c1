// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package geocache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadgerStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return store
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	coord := testCoord
	coord.CachedAt = time.Now().UTC().Truncate(time.Second)

	if err := store.Set(ctx, "sao paulo|sp", &coord); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "sao paulo|sp")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Latitude != coord.Latitude || got.Longitude != coord.Longitude {
		t.Errorf("got (%v, %v), want (%v, %v)", got.Latitude, got.Longitude, coord.Latitude, coord.Longitude)
	}
	if got.DisplayName != coord.DisplayName {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, coord.DisplayName)
	}
	if !got.CachedAt.Equal(coord.CachedAt) {
		t.Errorf("CachedAt = %v, want %v", got.CachedAt, coord.CachedAt)
	}
}

func TestBadgerStoreGetAbsent(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "nowhere|xx")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get absent key returned %v, want ErrNotFound", err)
	}
}

func TestBadgerStoreOverwrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testCoord
	if err := store.Set(ctx, "campinas|sp", &first); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second := testCoord
	second.Latitude = -22.9056
	second.Longitude = -47.0608
	if err := store.Set(ctx, "campinas|sp", &second); err != nil {
		t.Fatalf("overwrite Set failed: %v", err)
	}

	got, err := store.Get(ctx, "campinas|sp")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Latitude != second.Latitude {
		t.Errorf("Latitude = %v, want overwritten value %v", got.Latitude, second.Latitude)
	}
}

func TestBadgerStoreScanAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	keys := []string{"a|sp", "b|rj", "c|mg"}
	for _, key := range keys {
		if err := store.Set(ctx, key, &testCoord); err != nil {
			t.Fatalf("Set(%q) failed: %v", key, err)
		}
	}

	all, err := store.ScanAll(ctx)
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if len(all) != len(keys) {
		t.Fatalf("ScanAll returned %d entries, want %d", len(all), len(keys))
	}
	for _, key := range keys {
		if _, ok := all[key]; !ok {
			t.Errorf("ScanAll missing key %q", key)
		}
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get absent returned %v, want ErrNotFound", err)
	}

	if err := store.Set(ctx, "sao paulo|sp", &testCoord); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, "sao paulo|sp")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.DisplayName != testCoord.DisplayName {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, testCoord.DisplayName)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package models defines the shared data types for the map data pipeline:
// upstream representative records, resolved coordinates, and renderable pins.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Representative is an upstream record owned by the CRUD layer. The pipeline
// treats it as read-only input; only the fields relevant to pin placement are
// decoded. JSON tags match the upstream schema, which uses Portuguese names.
type Representative struct {
	ID           string       `json:"id"`
	Name         string       `json:"nome"`
	Type         string       `json:"tipo"`
	State        string       `json:"estado"`
	ServedCities []string     `json:"cidades_atendidas"`
	Status       ActiveStatus `json:"status"`
}

// ActiveStatus normalizes the upstream status field into an active/inactive
// view while preserving the raw encoding for drift logging.
//
// The upstream data has accumulated several legacy encodings of the same
// boolean: JSON true/false, the strings "true"/"false", and the Portuguese
// tokens "ativo"/"inativo". All of them must be accepted. Any value outside
// that closed set decodes as inactive with Known() == false so callers can
// log it as upstream data drift instead of silently ignoring it.
type ActiveStatus struct {
	raw    string
	active bool
	known  bool
}

// Recognized status encodings, lowercased.
var (
	activeTokens   = map[string]bool{"true": true, "ativo": true, "active": true}
	inactiveTokens = map[string]bool{"false": true, "inativo": true, "inactive": true, "": true}
)

// StatusFromRaw builds an ActiveStatus from a raw upstream token.
// Useful for tests and for sources that hand over plain strings.
func StatusFromRaw(raw string) ActiveStatus {
	token := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case activeTokens[token]:
		return ActiveStatus{raw: raw, active: true, known: true}
	case inactiveTokens[token]:
		return ActiveStatus{raw: raw, active: false, known: true}
	default:
		return ActiveStatus{raw: raw, active: false, known: false}
	}
}

// Active reports whether the status normalizes to active.
func (s ActiveStatus) Active() bool { return s.active }

// Known reports whether the raw encoding belongs to the recognized set.
// Unknown encodings signal upstream data drift and should be logged.
func (s ActiveStatus) Known() bool { return s.known }

// Raw returns the original upstream encoding.
func (s ActiveStatus) Raw() string { return s.raw }

// UnmarshalJSON accepts both boolean and string encodings of the status field.
func (s *ActiveStatus) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = StatusFromRaw(fmt.Sprintf("%t", b))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = StatusFromRaw(str)
		return nil
	}

	return fmt.Errorf("status: unsupported JSON encoding %q", string(data))
}

// MarshalJSON round-trips the raw encoding so re-serialized records stay
// byte-compatible with the upstream schema.
func (s ActiveStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.raw)
}

// CachedCoordinate is a resolved latitude/longitude with provenance and the
// cache timestamp used for expiry. Immutable once created; a refresh replaces
// the whole value.
type CachedCoordinate struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	DisplayName string    `json:"display_name"`
	CachedAt    time.Time `json:"cached_at"`
}

// Age returns how long ago the coordinate was cached relative to now.
func (c CachedCoordinate) Age(now time.Time) time.Duration {
	return now.Sub(c.CachedAt)
}

// Valid reports whether the coordinate is a finite, plottable point.
// Guards against malformed responses from the external geocoding service.
func (c CachedCoordinate) Valid() bool {
	return finite(c.Latitude) && finite(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// MapPin is one renderable point aggregating every representative resolved to
// the same normalized location. Pins are never mutated after assembly; each
// pipeline run replaces the full list.
type MapPin struct {
	// ID is the serialized location key of the pin's group.
	ID              string           `json:"id"`
	Latitude        float64          `json:"latitude"`
	Longitude       float64          `json:"longitude"`
	City            string           `json:"city"`
	State           string           `json:"state"`
	Representatives []Representative `json:"representatives"`
}

// Valid reports whether the pin carries a plottable coordinate.
func (p MapPin) Valid() bool {
	return CachedCoordinate{Latitude: p.Latitude, Longitude: p.Longitude}.Valid()
}

// Progress reports coarse-grained pipeline progress: batches completed over
// total batches, not per-key completion.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percent returns the completed fraction as a 0-100 percentage.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// MapState is the consumer-facing snapshot exposed by the pin pipeline.
// The pin list is replaced atomically per run; consumers never observe a
// partially assembled list.
type MapState struct {
	Pins      []MapPin `json:"pins"`
	IsLoading bool     `json:"is_loading"`
	Progress  Progress `json:"progress"`

	// Unresolved counts the location groups of the last completed run that
	// no geocoding query could place. Informational only, never an error.
	Unresolved int `json:"unresolved"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

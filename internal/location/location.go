// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package location normalizes free-text city/state fields into canonical
// location keys and groups representatives by the cities they serve.
//
// The upstream records are hand-typed, so the same place arrives under many
// spellings ("São Paulo", "sao paulo", "SAO PAULO"). Normalization case-folds
// and strips diacritics so all of them collapse to one key, which is used for
// both cache lookups and pin grouping.
package location

import (
	"sort"
	"strings"
	"unicode"

	"github.com/repatlas/repatlas/internal/logging"
	"github.com/repatlas/repatlas/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key identifies a geographic query: a (city, state) pair with both parts
// case-folded and stripped of diacritics. Two representatives serving
// textually different but equivalent city names share the same Key.
type Key struct {
	City  string
	State string
}

// NewKey normalizes the given city and state into a Key.
func NewKey(city, state string) Key {
	return Key{City: Normalize(city), State: Normalize(state)}
}

// String serializes the key for use as a cache key and pin ID.
func (k Key) String() string {
	return k.City + "|" + k.State
}

// Normalize lowercases s, strips diacritics, and collapses surrounding and
// repeated whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return stripDiacritics(s)
}

// stripDiacritics removes combining marks after canonical decomposition, so
// "são" becomes "sao". Falls back to the input on transform errors.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Group collects every representative serving one normalized location, along
// with the original spellings used for display on the assembled pin.
type Group struct {
	Key             Key
	City            string
	State           string
	Representatives []models.Representative
}

// GroupByServedCity filters representatives to active, placeable ones and
// groups them by normalized (city, state).
//
// Filtering rules:
//   - status must normalize to active; unknown encodings are logged as
//     upstream data drift and treated as inactive
//   - state must be non-empty
//   - the served-cities list must be non-empty
//
// A representative serving N cities appears in up to N groups. The returned
// slice is sorted by key for deterministic iteration.
func GroupByServedCity(reps []models.Representative) []Group {
	byKey := make(map[Key]*Group)

	for _, rep := range reps {
		if !rep.Status.Known() {
			logging.Warn().
				Str("representative_id", rep.ID).
				Str("status", rep.Status.Raw()).
				Msg("Unknown status encoding in upstream data, treating as inactive")
		}
		if !rep.Status.Active() {
			continue
		}
		if strings.TrimSpace(rep.State) == "" || len(rep.ServedCities) == 0 {
			continue
		}

		for _, city := range rep.ServedCities {
			if strings.TrimSpace(city) == "" {
				continue
			}
			key := NewKey(city, rep.State)
			g, ok := byKey[key]
			if !ok {
				g = &Group{Key: key, City: strings.TrimSpace(city), State: strings.TrimSpace(rep.State)}
				byKey[key] = g
			}
			g.Representatives = append(g.Representatives, rep)
		}
	}

	groups := make([]Group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key.String() < groups[j].Key.String()
	})
	return groups
}

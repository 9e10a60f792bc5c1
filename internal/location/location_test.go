// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package location

import (
	"testing"

	"github.com/repatlas/repatlas/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"São Paulo", "sao paulo"},
		{"SAO PAULO", "sao paulo"},
		{"  sao   paulo  ", "sao paulo"},
		{"Goiânia", "goiania"},
		{"Três Lagoas", "tres lagoas"},
		{"Paraná", "parana"},
		{"BRASÍLIA", "brasilia"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeyString(t *testing.T) {
	key := NewKey("São Paulo", "SP")
	if key.String() != "sao paulo|sp" {
		t.Errorf("Key.String() = %q, want %q", key.String(), "sao paulo|sp")
	}

	// Equivalent spellings must produce identical keys.
	if NewKey("SAO   PAULO", " sp ") != key {
		t.Error("expected spelling variants to normalize to the same key")
	}
}

func rep(id, state string, status string, cities ...string) models.Representative {
	return models.Representative{
		ID:           id,
		Name:         "Rep " + id,
		State:        state,
		ServedCities: cities,
		Status:       models.StatusFromRaw(status),
	}
}

func TestGroupByServedCityDeduplicatesSpellings(t *testing.T) {
	reps := []models.Representative{
		rep("a", "SP", "ativo", "São Paulo"),
		rep("b", "sp", "true", "SAO PAULO"),
	}

	groups := GroupByServedCity(reps)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.Key.String() != "sao paulo|sp" {
		t.Errorf("group key = %q, want sao paulo|sp", g.Key.String())
	}
	if len(g.Representatives) != 2 {
		t.Errorf("got %d representatives in group, want 2", len(g.Representatives))
	}
	// Display fields keep the first spelling seen.
	if g.City != "São Paulo" {
		t.Errorf("group city = %q, want São Paulo", g.City)
	}
}

func TestGroupByServedCityFilters(t *testing.T) {
	reps := []models.Representative{
		rep("active", "SP", "ativo", "Campinas"),
		rep("inactive", "SP", "inativo", "Campinas"),
		rep("unknown-status", "SP", "talvez", "Campinas"),
		rep("no-state", "", "ativo", "Campinas"),
		rep("no-cities", "SP", "ativo"),
		rep("blank-city", "SP", "ativo", "   "),
	}

	groups := GroupByServedCity(reps)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].Representatives) != 1 {
		t.Fatalf("got %d representatives, want only the active one", len(groups[0].Representatives))
	}
	if groups[0].Representatives[0].ID != "active" {
		t.Errorf("kept representative %q, want active", groups[0].Representatives[0].ID)
	}
}

func TestGroupByServedCityMultiCity(t *testing.T) {
	reps := []models.Representative{
		rep("a", "SP", "ativo", "Campinas", "Sorocaba", "Santos"),
	}

	groups := GroupByServedCity(reps)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	// Sorted by serialized key.
	wantOrder := []string{"campinas|sp", "santos|sp", "sorocaba|sp"}
	for i, want := range wantOrder {
		if groups[i].Key.String() != want {
			t.Errorf("groups[%d].Key = %q, want %q", i, groups[i].Key.String(), want)
		}
	}
}

func TestGroupByServedCityEmptyInput(t *testing.T) {
	if groups := GroupByServedCity(nil); len(groups) != 0 {
		t.Errorf("got %d groups for nil input, want 0", len(groups))
	}
}

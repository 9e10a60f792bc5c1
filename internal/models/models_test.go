// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package models

import (
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestStatusFromRaw(t *testing.T) {
	tests := []struct {
		raw    string
		active bool
		known  bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"ativo", true, true},
		{"Ativo", true, true},
		{"active", true, true},
		{"false", false, true},
		{"inativo", false, true},
		{"INATIVO", false, true},
		{"inactive", false, true},
		{"", false, true},
		{"  ativo  ", true, true},
		{"pendente", false, false},
		{"1", false, false},
		{"yes", false, false},
	}

	for _, tt := range tests {
		s := StatusFromRaw(tt.raw)
		if s.Active() != tt.active {
			t.Errorf("StatusFromRaw(%q).Active() = %v, want %v", tt.raw, s.Active(), tt.active)
		}
		if s.Known() != tt.known {
			t.Errorf("StatusFromRaw(%q).Known() = %v, want %v", tt.raw, s.Known(), tt.known)
		}
		if s.Raw() != tt.raw {
			t.Errorf("StatusFromRaw(%q).Raw() = %q, want original", tt.raw, s.Raw())
		}
	}
}

func TestActiveStatusUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		active bool
		known  bool
	}{
		{"json bool true", `{"status": true}`, true, true},
		{"json bool false", `{"status": false}`, false, true},
		{"string ativo", `{"status": "ativo"}`, true, true},
		{"string true", `{"status": "true"}`, true, true},
		{"string inativo", `{"status": "inativo"}`, false, true},
		{"unknown token", `{"status": "talvez"}`, false, false},
		// An absent field never reaches UnmarshalJSON; the zero value is
		// inactive and unknown, so missing statuses surface as drift too.
		{"absent field", `{}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rep Representative
			if err := json.Unmarshal([]byte(tt.body), &rep); err != nil {
				t.Fatalf("Unmarshal(%s) failed: %v", tt.body, err)
			}
			if rep.Status.Active() != tt.active {
				t.Errorf("Active() = %v, want %v", rep.Status.Active(), tt.active)
			}
			if rep.Status.Known() != tt.known {
				t.Errorf("Known() = %v, want %v", rep.Status.Known(), tt.known)
			}
		})
	}
}

func TestActiveStatusUnmarshalJSONRejectsOtherTypes(t *testing.T) {
	var s ActiveStatus
	if err := json.Unmarshal([]byte(`[1, 2]`), &s); err == nil {
		t.Error("expected error for array-encoded status")
	}
}

func TestActiveStatusMarshalPreservesRaw(t *testing.T) {
	s := StatusFromRaw("Ativo")
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"Ativo"` {
		t.Errorf("Marshal = %s, want original raw encoding", data)
	}
}

func TestRepresentativeJSONTags(t *testing.T) {
	body := `{
		"id": "rep-1",
		"nome": "Maria Silva",
		"tipo": "distribuidor",
		"estado": "SP",
		"cidades_atendidas": ["Campinas", "Sorocaba"],
		"status": "ativo"
	}`

	var rep Representative
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if rep.Name != "Maria Silva" {
		t.Errorf("Name = %q, want Maria Silva", rep.Name)
	}
	if rep.State != "SP" {
		t.Errorf("State = %q, want SP", rep.State)
	}
	if len(rep.ServedCities) != 2 {
		t.Errorf("ServedCities = %v, want 2 entries", rep.ServedCities)
	}
	if !rep.Status.Active() {
		t.Error("expected active status")
	}
}

func TestCachedCoordinateValid(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64
		lon   float64
		valid bool
	}{
		{"sao paulo", -23.5505, -46.6333, true},
		{"origin", 0, 0, true},
		{"lat too high", 90.01, 0, false},
		{"lat too low", -90.01, 0, false},
		{"lon too high", 0, 180.01, false},
		{"lon too low", 0, -180.01, false},
		{"nan latitude", math.NaN(), 0, false},
		{"inf longitude", 0, math.Inf(1), false},
		{"boundary", -90, 180, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CachedCoordinate{Latitude: tt.lat, Longitude: tt.lon}
			if c.Valid() != tt.valid {
				t.Errorf("Valid() = %v, want %v", c.Valid(), tt.valid)
			}
		})
	}
}

func TestCachedCoordinateAge(t *testing.T) {
	now := time.Now()
	c := CachedCoordinate{CachedAt: now.Add(-time.Hour)}
	if got := c.Age(now); got != time.Hour {
		t.Errorf("Age() = %v, want 1h", got)
	}
}

func TestProgressPercent(t *testing.T) {
	if got := (Progress{}).Percent(); got != 0 {
		t.Errorf("zero progress Percent() = %v, want 0", got)
	}
	if got := (Progress{Current: 5, Total: 10}).Percent(); got != 50 {
		t.Errorf("Percent() = %v, want 50", got)
	}
	if got := (Progress{Current: 3, Total: 3}).Percent(); got != 100 {
		t.Errorf("Percent() = %v, want 100", got)
	}
}

func TestMapPinValid(t *testing.T) {
	pin := MapPin{ID: "campinas|sp", Latitude: -22.9, Longitude: -47.06}
	if !pin.Valid() {
		t.Error("expected valid pin")
	}
	pin.Latitude = math.NaN()
	if pin.Valid() {
		t.Error("expected invalid pin with NaN latitude")
	}
}

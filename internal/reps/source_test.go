// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package reps

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/repatlas/repatlas/internal/models"
)

const upstreamBody = `[
	{"id": "1", "nome": "Ana", "estado": "SP", "cidades_atendidas": ["Campinas"], "status": "ativo"},
	{"id": "2", "nome": "João", "estado": "RJ", "cidades_atendidas": ["Niterói"], "status": true},
	{"id": "3", "nome": "Bia", "estado": "MG", "cidades_atendidas": [], "status": "inativo"}
]`

func TestHTTPSourceList(t *testing.T) {
	var gotAPIKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, upstreamBody)
	}))
	defer srv.Close()

	source := NewHTTPSource(HTTPConfig{URL: srv.URL, APIKey: "secret"})
	reps, err := source.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(reps) != 3 {
		t.Fatalf("got %d representatives, want 3", len(reps))
	}
	if reps[0].Name != "Ana" || reps[0].State != "SP" {
		t.Errorf("reps[0] = %+v, want Ana/SP", reps[0])
	}
	if !reps[1].Status.Active() {
		t.Error("expected boolean-encoded status to decode as active")
	}
	if reps[2].Status.Active() {
		t.Error("expected inativo to decode as inactive")
	}

	if gotAPIKey != "secret" {
		t.Errorf("apikey header = %q, want secret", gotAPIKey)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization header = %q, want Bearer secret", gotAuth)
	}
}

func TestHTTPSourceNoAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "" || r.Header.Get("Authorization") != "" {
			t.Error("expected no auth headers without an API key")
		}
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	source := NewHTTPSource(HTTPConfig{URL: srv.URL})
	if _, err := source.List(context.Background()); err != nil {
		t.Fatalf("List failed: %v", err)
	}
}

func TestHTTPSourceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := NewHTTPSource(HTTPConfig{URL: srv.URL})
	if _, err := source.List(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestHTTPSourceMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"not": "an array"}`)
	}))
	defer srv.Close()

	source := NewHTTPSource(HTTPConfig{URL: srv.URL})
	if _, err := source.List(context.Background()); err == nil {
		t.Error("expected error for non-array body")
	}
}

func TestStaticSourceReturnsCopy(t *testing.T) {
	fixed := []models.Representative{{ID: "1", Name: "Ana"}}
	source := NewStaticSource(fixed)

	got, err := source.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	got[0].Name = "mutated"

	again, _ := source.List(context.Background())
	if again[0].Name != "Ana" {
		t.Error("mutating a returned slice must not affect the source")
	}
}

// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/repatlas/repatlas/internal/logging"
)

func TestRequestLoggerEmitsDebugLog(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &buf})
	defer logging.Init(logging.Config{})

	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/map/pins", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, `"message":"http request"`) {
		t.Errorf("missing request log line in %q", out)
	}
	if !strings.Contains(out, `"status":418`) {
		t.Errorf("missing captured status in %q", out)
	}
	if !strings.Contains(out, `"method":"GET"`) {
		t.Errorf("missing method in %q", out)
	}
	if !strings.Contains(out, `"path":"/api/v1/map/pins"`) {
		t.Errorf("missing path in %q", out)
	}
}

func TestRequestLoggerDefaultsStatusOK(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &buf})
	defer logging.Init(logging.Config{})

	// A handler that never calls WriteHeader still logs as 200.
	handler := RequestLogger()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if !strings.Contains(buf.String(), `"status":200`) {
		t.Errorf("missing default status in %q", buf.String())
	}
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	mw := NewMiddleware(&MiddlewareConfig{RateLimitDisabled: true})

	called := false
	handler := mw.RateLimit()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("disabled rate limit must pass requests through")
	}
}

// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package api provides the HTTP surface for the map data pipeline: pin
// state, refresh triggers, preloader control, cache stats, and health.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/repatlas/repatlas/internal/logging"
)

// APIResponse is the standardized envelope for all endpoints.
type APIResponse struct {
	// Success indicates whether the request was handled successfully.
	Success bool `json:"success"`

	// Data contains the response payload (null on error).
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success).
	Error *APIError `json:"error,omitempty"`

	// Meta carries response metadata.
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIError is a machine-readable error payload.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON writes a success envelope with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC()},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode API response")
	}
}

// writeError writes an error envelope with the given status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC()},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode API error response")
	}
}

// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

// Package config loads RepAtlas configuration from layered sources with
// clear precedence: environment variables > YAML config file > built-in
// defaults. Every operational constant of the map pipeline is a knob here,
// with the defaults matching the product's documented behavior.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Geocoder GeocoderConfig `koanf:"geocoder"`
	Cache    CacheConfig    `koanf:"cache"`
	Pins     PinsConfig     `koanf:"pins"`
	Preload  PreloadConfig  `koanf:"preload"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// UpstreamConfig configures the read-only representative source. An empty
// URL means no upstream; the API then serves whatever it is handed directly.
type UpstreamConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// GeocoderConfig configures the external geocoding endpoint.
type GeocoderConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required,url"`
	UserAgent      string        `koanf:"user_agent" validate:"required"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout" validate:"gt=0"`
	AttemptDelay   time.Duration `koanf:"attempt_delay" validate:"gte=0"`
	ResultLimit    int           `koanf:"result_limit" validate:"gte=1,lte=50"`
	CountryCodes   string        `koanf:"country_codes"`
	CountrySuffix  string        `koanf:"country_suffix"`
}

// CacheConfig configures the two-tier coordinate cache. An empty Path keeps
// the persistent tier in memory (coordinates are then lost on restart).
type CacheConfig struct {
	Path       string        `koanf:"path"`
	MemoryTTL  time.Duration `koanf:"memory_ttl" validate:"gt=0"`
	PersistTTL time.Duration `koanf:"persist_ttl" validate:"gt=0"`
}

// PinsConfig configures the pin aggregation pipeline.
type PinsConfig struct {
	BatchSize int `koanf:"batch_size" validate:"gte=1"`
}

// PreloadConfig configures background cache warming.
type PreloadConfig struct {
	Enabled               bool          `koanf:"enabled"`
	MaxConcurrentRequests int           `koanf:"max_concurrent_requests" validate:"gte=1"`
	DelayBetweenBatches   time.Duration `koanf:"delay_between_batches" validate:"gte=0"`
	Interval              time.Duration `koanf:"interval" validate:"gt=0"`
}

// LoggingConfig configures the zerolog pipeline.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks field constraints plus cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The preloader must stay gentler than the user-triggered pipeline,
	// otherwise background work competes with foreground resolution.
	if c.Preload.MaxConcurrentRequests > c.Pins.BatchSize {
		return fmt.Errorf("preload.max_concurrent_requests (%d) must not exceed pins.batch_size (%d)",
			c.Preload.MaxConcurrentRequests, c.Pins.BatchSize)
	}

	return nil
}

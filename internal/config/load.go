// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations searched in order; the
// first one found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/repatlas/config.yaml",
	"/etc/repatlas/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces this service's environment variables.
const envPrefix = "REPATLAS_"

// sections are the known top-level config sections, used to map environment
// variable names onto koanf paths.
var sections = []string{"server", "upstream", "geocoder", "cache", "pins", "preload", "logging"}

// Default returns a Config with every default value filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            4326,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Upstream: UpstreamConfig{
			URL:     "",
			APIKey:  "",
			Timeout: 10 * time.Second,
		},
		Geocoder: GeocoderConfig{
			BaseURL:        "https://nominatim.openstreetmap.org/search",
			UserAgent:      "repatlas/1.0 (+https://github.com/repatlas/repatlas)",
			AttemptTimeout: 5 * time.Second,
			AttemptDelay:   200 * time.Millisecond,
			ResultLimit:    5,
			CountryCodes:   "br",
			CountrySuffix:  "Brasil",
		},
		Cache: CacheConfig{
			Path:       "/data/geocache",
			MemoryTTL:  10 * time.Minute,
			PersistTTL: 30 * 24 * time.Hour,
		},
		Pins: PinsConfig{
			BatchSize: 10,
		},
		Preload: PreloadConfig{
			Enabled:               true,
			MaxConcurrentRequests: 2,
			DelayBetweenBatches:   300 * time.Millisecond,
			Interval:              15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority), e.g.
//     REPATLAS_GEOCODER_BASE_URL -> geocoder.base_url
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps REPATLAS_<SECTION>_<KEY> onto "<section>.<key>".
// The key part keeps its underscores: REPATLAS_CACHE_MEMORY_TTL becomes
// cache.memory_ttl.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	// Unknown section: leave untouched so koanf ignores it.
	return key
}

// SPDX-License-Identifier: Apache-2.0

// Package config centralizes configuration: documented defaults, an
// optional YAML file, then environment overrides, validated on load so
// misconfiguration fails at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds all application configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Cache   CacheConfig   `yaml:"cache"`
	Match   MatchConfig   `yaml:"match"`
	Logging LoggingConfig `yaml:"logging"`
}

// CatalogConfig configures the parts-catalog API client.
type CatalogConfig struct {
	// URL is the catalog API base URL.
	URL string `yaml:"url"`
	// APIKey authenticates catalog requests. Usually set via PARTS_API_KEY.
	APIKey string `yaml:"api_key"`
	// Timeout bounds a single catalog HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts bounds retries per catalog call.
	MaxAttempts int `yaml:"max_attempts"`
}

// CacheConfig configures the lookup cache.
type CacheConfig struct {
	// Dir is where the on-disk snapshot lives; empty disables persistence.
	Dir string `yaml:"dir"`
	// TTL is how long catalog responses stay valid.
	TTL time.Duration `yaml:"ttl"`
	// MaxEntries bounds the in-memory store.
	MaxEntries int `yaml:"max_entries"`
}

// MatchConfig holds the matching thresholds and concurrency limits.
type MatchConfig struct {
	// AcceptThreshold is the minimum confidence for a matched row.
	AcceptThreshold float64 `yaml:"accept_threshold"`
	// AmbiguityMargin makes near-tied candidates ambiguous.
	AmbiguityMargin float64 `yaml:"ambiguity_margin"`
	// ValueTolerancePct is the component-value comparison tolerance.
	ValueTolerancePct float64 `yaml:"value_tolerance_pct"`
	// Workers bounds concurrent row matching.
	Workers int `yaml:"workers"`
	// RowTimeout bounds catalog lookups for a single row.
	RowTimeout time.Duration `yaml:"row_timeout"`
	// OneRefPerRow expands grouped reference lists during parsing.
	OneRefPerRow bool `yaml:"one_ref_per_row"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Default returns the documented default configuration.
func Default() Config {
	cacheDir := ".cache/parts-mcp"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".cache", "parts-mcp")
	}
	return Config{
		Catalog: CatalogConfig{
			URL:         "https://api.sourceparts.example/v1",
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Cache: CacheConfig{
			Dir:        cacheDir,
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
		},
		Match: MatchConfig{
			AcceptThreshold:   0.8,
			AmbiguityMargin:   0.05,
			ValueTolerancePct: 5.0,
			Workers:           4,
			RowTimeout:        30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PARTS_API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
	}
	if v := os.Getenv("PARTS_API_URL"); v != "" {
		cfg.Catalog.URL = v
	}
	if v := os.Getenv("PARTS_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("PARTS_CACHE_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours >= 0 {
			cfg.Cache.TTL = time.Duration(hours) * time.Hour
		}
	}
	if v := os.Getenv("PARTS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog.url is required")
	}
	if c.Match.AcceptThreshold < 0 || c.Match.AcceptThreshold > 1 {
		return fmt.Errorf("match.accept_threshold must be in [0, 1], got %v", c.Match.AcceptThreshold)
	}
	if c.Match.AmbiguityMargin < 0 || c.Match.AmbiguityMargin > 1 {
		return fmt.Errorf("match.ambiguity_margin must be in [0, 1], got %v", c.Match.AmbiguityMargin)
	}
	if c.Match.Workers < 1 {
		return fmt.Errorf("match.workers must be at least 1, got %d", c.Match.Workers)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries)
	}
	return nil
}

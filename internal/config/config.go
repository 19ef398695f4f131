// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads, validates and hot-reloads the headernormd configuration.
package config

import (
	"time"

	"github.com/ManuGH/headernorm/internal/headernorm"
)

// Config is the full daemon configuration.
type Config struct {
	// Version is the build version; it is not read from the file.
	Version string `yaml:"-"`

	Listen     string `yaml:"listen"`
	Upstream   string `yaml:"upstream,omitempty"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	// Header normalization
	Canonical           bool              `yaml:"canonical"`
	RewriteUpstreamKeys bool              `yaml:"rewriteUpstreamKeys"`
	DefaultHeaders      map[string]string `yaml:"defaultHeaders,omitempty"`

	Redis         RedisConfig         `yaml:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
	UpstreamLimit UpstreamLimitConfig `yaml:"upstreamLimit"`
	Tracing       TracingConfig       `yaml:"tracing"`

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RedisConfig points at an optional Redis hash holding shared default headers.
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	Refresh  time.Duration `yaml:"refresh"`
}

// Enabled reports whether a Redis defaults source is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// UpstreamLimitConfig configures token buckets in front of the upstream.
// A zero rate disables the bucket.
type UpstreamLimitConfig struct {
	Rate           float64 `yaml:"rate"`
	Burst          int     `yaml:"burst"`
	PerClientRate  float64 `yaml:"perClientRate"`
	PerClientBurst int     `yaml:"perClientBurst"`
}

// Enabled reports whether any upstream bucket is configured.
func (u UpstreamLimitConfig) Enabled() bool {
	return u.Rate > 0 || u.PerClientRate > 0
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint,omitempty"`
	Sampling    float64 `yaml:"sampling"`
	Environment string  `yaml:"environment,omitempty"`
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() Config {
	return Config{
		Listen:     ":8080",
		LogLevel:   "info",
		LogService: "headernormd",
		Redis: RedisConfig{
			Key:     "headernorm:defaults",
			Refresh: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 600,
			Window:   time.Minute,
		},
		Tracing: TracingConfig{
			Exporter: "grpc",
			Sampling: 1.0,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// NormalizerOptions maps the configuration onto normalizer options. extra
// defaults (e.g. from Redis) override the configured ones key by key.
func (c Config) NormalizerOptions(extra map[string]string) headernorm.Options {
	defaults := make(map[string]string, len(c.DefaultHeaders)+len(extra))
	for k, v := range c.DefaultHeaders {
		defaults[k] = v
	}
	for k, v := range extra {
		defaults[k] = v
	}
	return headernorm.Options{
		Canonical:      c.Canonical,
		DefaultHeaders: defaults,
	}
}

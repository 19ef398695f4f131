// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names. They take precedence over the file.
const (
	EnvListen              = "HEADERNORM_LISTEN"
	EnvUpstream            = "HEADERNORM_UPSTREAM"
	EnvLogLevel            = "HEADERNORM_LOG_LEVEL"
	EnvLogService          = "HEADERNORM_LOG_SERVICE"
	EnvCanonical           = "HEADERNORM_CANONICAL"
	EnvRewriteUpstreamKeys = "HEADERNORM_REWRITE_UPSTREAM_KEYS"
	EnvDefaultHeaders      = "HEADERNORM_DEFAULT_HEADERS"
	EnvRedisAddr           = "HEADERNORM_REDIS_ADDR"
	EnvRedisPassword       = "HEADERNORM_REDIS_PASSWORD"
	EnvRedisDB             = "HEADERNORM_REDIS_DB"
	EnvRedisKey            = "HEADERNORM_REDIS_KEY"
	EnvRedisRefresh        = "HEADERNORM_REDIS_REFRESH"
	EnvRateLimitEnabled    = "HEADERNORM_RATELIMIT_ENABLED"
	EnvRateLimitRequests   = "HEADERNORM_RATELIMIT_REQUESTS"
	EnvRateLimitWindow     = "HEADERNORM_RATELIMIT_WINDOW"
	EnvUpstreamRate        = "HEADERNORM_UPSTREAM_RATE"
	EnvUpstreamBurst       = "HEADERNORM_UPSTREAM_BURST"
	EnvUpstreamClientRate  = "HEADERNORM_UPSTREAM_CLIENT_RATE"
	EnvUpstreamClientBurst = "HEADERNORM_UPSTREAM_CLIENT_BURST"
	EnvTracingEnabled      = "HEADERNORM_TRACING_ENABLED"
	EnvTracingExporter     = "HEADERNORM_TRACING_EXPORTER"
	EnvTracingEndpoint     = "HEADERNORM_TRACING_ENDPOINT"
	EnvTracingSampling     = "HEADERNORM_TRACING_SAMPLING"
	EnvShutdownTimeout     = "HEADERNORM_SHUTDOWN_TIMEOUT"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path the loader reads, possibly empty.
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envHeaders(key string) map[string]string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseHeaders(key)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// The result is validated before it is returned.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.mergeFile(&cfg, l.configPath); err != nil {
			return Config{}, err
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile parses a YAML config file on top of the defaults, without env
// overrides. It is used by `config validate`.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	l := NewLoader(path, "")
	if err := l.mergeFile(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile decodes the YAML file strictly into cfg. Keys absent from the file
// keep their current value.
func (l *Loader) mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("parse config file %s: %w: %v", path, ErrUnknownConfigField, err)
		}
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *Config) {
	cfg.Listen = l.envString(EnvListen, cfg.Listen)
	cfg.Upstream = l.envString(EnvUpstream, cfg.Upstream)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)

	cfg.Canonical = l.envBool(EnvCanonical, cfg.Canonical)
	cfg.RewriteUpstreamKeys = l.envBool(EnvRewriteUpstreamKeys, cfg.RewriteUpstreamKeys)
	if headers := l.envHeaders(EnvDefaultHeaders); len(headers) > 0 {
		if cfg.DefaultHeaders == nil {
			cfg.DefaultHeaders = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.DefaultHeaders[k] = v
		}
	}

	cfg.Redis.Addr = l.envString(EnvRedisAddr, cfg.Redis.Addr)
	cfg.Redis.Password = l.envString(EnvRedisPassword, cfg.Redis.Password)
	cfg.Redis.DB = l.envInt(EnvRedisDB, cfg.Redis.DB)
	cfg.Redis.Key = l.envString(EnvRedisKey, cfg.Redis.Key)
	cfg.Redis.Refresh = l.envDuration(EnvRedisRefresh, cfg.Redis.Refresh)

	cfg.RateLimit.Enabled = l.envBool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = l.envInt(EnvRateLimitRequests, cfg.RateLimit.Requests)
	cfg.RateLimit.Window = l.envDuration(EnvRateLimitWindow, cfg.RateLimit.Window)

	cfg.UpstreamLimit.Rate = l.envFloat(EnvUpstreamRate, cfg.UpstreamLimit.Rate)
	cfg.UpstreamLimit.Burst = l.envInt(EnvUpstreamBurst, cfg.UpstreamLimit.Burst)
	cfg.UpstreamLimit.PerClientRate = l.envFloat(EnvUpstreamClientRate, cfg.UpstreamLimit.PerClientRate)
	cfg.UpstreamLimit.PerClientBurst = l.envInt(EnvUpstreamClientBurst, cfg.UpstreamLimit.PerClientBurst)

	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.Sampling = l.envFloat(EnvTracingSampling, cfg.Tracing.Sampling)

	cfg.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)
}

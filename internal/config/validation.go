// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/ManuGH/headernorm/internal/validate"
)

// Validate validates a Config using the centralized validation package
func Validate(cfg Config) error {
	v := validate.New()

	v.ListenAddr("listen", cfg.Listen)
	if strings.TrimSpace(cfg.Upstream) != "" {
		v.URL("upstream", cfg.Upstream, []string{"http", "https"})
	}
	v.LogLevel("logLevel", cfg.LogLevel)

	if err := cfg.NormalizerOptions(nil).Validate(); err != nil {
		var ve validate.ValidationError
		if errors.As(err, &ve) {
			for _, e := range ve.Errors() {
				v.AddError(e.Field, e.Message, e.Value)
			}
		} else {
			v.AddError("defaultHeaders", err.Error(), nil)
		}
	}

	if cfg.Redis.Enabled() {
		v.NotEmpty("redis.key", cfg.Redis.Key)
		v.Range("redis.db", cfg.Redis.DB, 0, 15)
		if cfg.Redis.Refresh != 0 {
			v.MinDuration("redis.refresh", cfg.Redis.Refresh, time.Second)
		}
	}

	if cfg.RateLimit.Enabled {
		v.Range("rateLimit.requests", cfg.RateLimit.Requests, 1, 1_000_000)
		v.MinDuration("rateLimit.window", cfg.RateLimit.Window, time.Second)
	}

	v.FloatRange("upstreamLimit.rate", cfg.UpstreamLimit.Rate, 0, 1_000_000)
	v.Range("upstreamLimit.burst", cfg.UpstreamLimit.Burst, 0, 1_000_000)
	v.FloatRange("upstreamLimit.perClientRate", cfg.UpstreamLimit.PerClientRate, 0, 1_000_000)
	v.Range("upstreamLimit.perClientBurst", cfg.UpstreamLimit.PerClientBurst, 0, 1_000_000)

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		v.FloatRange("tracing.sampling", cfg.Tracing.Sampling, 0, 1)
	}

	v.MinDuration("shutdownTimeout", cfg.ShutdownTimeout, 0)

	return v.Err()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"net/http"
	"time"

	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool
	AccessLogger   zerolog.Logger // used when EnableLogging is set

	EnableRateLimit   bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitKeyFunc  func(r *http.Request) (string, error)

	// Normalize is the header normalization middleware, mounted innermost.
	Normalize func(http.Handler) http.Handler
}

// ApplyStack applies the ingress middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. Metrics (track all requests)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 4. Tracing
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	// 5. Logging (wraps handlers, captures full latency)
	if cfg.EnableLogging {
		r.Use(xglog.Middleware(cfg.AccessLogger))
	}
	// 6. Rate limit
	if cfg.EnableRateLimit {
		r.Use(RateLimit(RateLimitConfig{
			RequestLimit: cfg.RateLimitRequests,
			WindowSize:   cfg.RateLimitWindow,
			KeyFunc:      cfg.RateLimitKeyFunc,
		}))
	}
	// 7. Header normalization (sees the request exactly as the handler will)
	if cfg.Normalize != nil {
		r.Use(cfg.Normalize)
	}
}

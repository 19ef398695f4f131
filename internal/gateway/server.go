// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gateway is the HTTP front of headernormd. It normalizes inbound
// request headers and forwards the request to a configured upstream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ManuGH/headernorm/internal/headernorm"
	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/ManuGH/headernorm/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config configures a Server.
type Config struct {
	Listen              string
	Upstream            string // empty answers 502 for proxied routes
	RewriteUpstreamKeys bool

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// UpstreamLimit guards proxied traffic. The zero value disables it.
	UpstreamLimit ratelimit.Config

	// TracingService names the server span source. Empty disables tracing middleware.
	TracingService string

	ShutdownTimeout time.Duration

	// Transport is the outbound round tripper. Nil uses a clone of http.DefaultTransport.
	Transport http.RoundTripper
}

// Server serves the normalizing gateway.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	normalizer atomic.Pointer[headernorm.Normalizer]
	upstream   atomic.Pointer[upstream]
	draining   atomic.Bool
	limiter    *ratelimit.Limiter // nil when UpstreamLimit is zero

	handler http.Handler
}

// New builds a Server. n is the initial normalizer; nil means the zero Options.
func New(cfg Config, n *headernorm.Normalizer, logger zerolog.Logger) (*Server, error) {
	if n == nil {
		n = headernorm.New(headernorm.Options{})
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{cfg: cfg, logger: logger}
	if cfg.UpstreamLimit.GlobalRate > 0 || cfg.UpstreamLimit.PerClientRate > 0 {
		s.limiter = ratelimit.New(cfg.UpstreamLimit)
	}
	s.normalizer.Store(n)
	if err := s.SetUpstream(cfg.Upstream, cfg.RewriteUpstreamKeys); err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	ApplyStack(r, StackConfig{
		EnableMetrics:     true,
		TracingService:    cfg.TracingService,
		EnableLogging:     true,
		AccessLogger:      logger,
		EnableRateLimit:   cfg.RateLimitEnabled,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Normalize:         s.normalize,
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.HandleFunc("/debug/headers", s.handleDebugHeaders)
	r.Handle("/*", http.HandlerFunc(s.handleProxy))

	s.handler = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetNormalizer swaps the normalizer used by subsequent requests.
func (s *Server) SetNormalizer(n *headernorm.Normalizer) {
	if n == nil {
		return
	}
	s.normalizer.Store(n)
}

// Normalizer returns the normalizer currently in use.
func (s *Server) Normalizer() *headernorm.Normalizer {
	return s.normalizer.Load()
}

// SetUpstream swaps the proxy target. An empty raw URL disables proxying.
func (s *Server) SetUpstream(raw string, rewriteKeys bool) error {
	if raw == "" {
		s.upstream.Store(nil)
		return nil
	}
	u, err := newUpstream(raw, rewriteKeys, s.cfg.Transport, s.logger)
	if err != nil {
		return err
	}
	s.upstream.Store(u)
	return nil
}

// normalize mounts the current normalizer. The pointer is read once per
// request so a reload never splits a request across two normalizers.
func (s *Server) normalize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headernorm.HTTP(s.normalizer.Load())(next).ServeHTTP(w, r)
	})
}

// Run listens on cfg.Listen and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within ShutdownTimeout. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.logger.Info().
		Str(xglog.FieldEvent, "server.started").
		Str("addr", ln.Addr().String()).
		Msg("gateway listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.draining.Store(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info().Str(xglog.FieldEvent, "server.shutdown").Msg("shutting down gateway")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleDebugHeaders(w http.ResponseWriter, r *http.Request) {
	ev, ok := headernorm.EventFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "not_normalized", "No normalized event on request.",
			xglog.RequestIDFromContext(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	u := s.upstream.Load()
	if u == nil {
		writeJSONError(w, http.StatusBadGateway, "no_upstream", "No upstream is configured.",
			xglog.RequestIDFromContext(r.Context()))
		return
	}
	if s.limiter != nil && !s.limiter.Allow(ratelimit.ClientIP(r)) {
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "upstream_busy", "The upstream is at capacity. Please retry.",
			xglog.RequestIDFromContext(r.Context()))
		return
	}
	u.proxy.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

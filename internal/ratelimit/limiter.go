// SPDX-License-Identifier: MIT

// Package ratelimit guards the upstream with token buckets: one shared by all
// clients and one per client address.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "headernorm",
		Name:      "upstream_ratelimit_exceeded_total",
		Help:      "Proxied requests rejected before reaching the upstream",
	},
	[]string{"limit_type"},
)

// Config holds token bucket settings. A zero rate disables that bucket.
type Config struct {
	GlobalRate  rate.Limit // requests per second across all clients
	GlobalBurst int

	PerClientRate  rate.Limit
	PerClientBurst int

	// CleanupInterval bounds how long idle per-client buckets are kept.
	CleanupInterval time.Duration
}

// Limiter checks proxied requests against the configured buckets.
type Limiter struct {
	config Config

	global *rate.Limiter

	mu          sync.Mutex
	perClient   map[string]*rate.Limiter
	lastCleanup time.Time
}

// New creates a limiter with the given config.
func New(config Config) *Limiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	l := &Limiter{
		config:      config,
		perClient:   make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
	if config.GlobalRate > 0 {
		l.global = rate.NewLimiter(config.GlobalRate, max(config.GlobalBurst, 1))
	}
	return l
}

// Allow reports whether a request from client may proceed.
func (l *Limiter) Allow(client string) bool {
	if l.global != nil && !l.global.Allow() {
		rateLimitExceeded.WithLabelValues("global").Inc()
		return false
	}
	if l.config.PerClientRate <= 0 {
		return true
	}
	if !l.clientLimiter(client).Allow() {
		rateLimitExceeded.WithLabelValues("per_client").Inc()
		return false
	}
	return true
}

func (l *Limiter) clientLimiter(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) >= l.config.CleanupInterval {
		l.perClient = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.perClient[client]
	if !ok {
		limiter = rate.NewLimiter(l.config.PerClientRate, max(l.config.PerClientBurst, 1))
		l.perClient[client] = limiter
	}
	return limiter
}

// ClientIP extracts the client address from the request. The first
// X-Forwarded-For entry wins, then X-Real-IP, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SPDX-License-Identifier: MIT

package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func exceeded(t *testing.T, limitType string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, rateLimitExceeded.WithLabelValues(limitType).Write(m))
	return m.GetCounter().GetValue()
}

func TestLimiter_Global(t *testing.T) {
	before := exceeded(t, "global")
	limiter := New(Config{GlobalRate: 1, GlobalBurst: 5, CleanupInterval: time.Minute})

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow("192.0.2.1") {
			allowed++
		}
	}

	// One token may refill while the loop runs.
	assert.GreaterOrEqual(t, allowed, 5)
	assert.LessOrEqual(t, allowed, 6)
	assert.GreaterOrEqual(t, exceeded(t, "global")-before, float64(4))
}

func TestLimiter_PerClientIsolation(t *testing.T) {
	limiter := New(Config{PerClientRate: 1, PerClientBurst: 2})

	assert.True(t, limiter.Allow("192.0.2.1"))
	assert.True(t, limiter.Allow("192.0.2.1"))
	assert.False(t, limiter.Allow("192.0.2.1"))

	assert.True(t, limiter.Allow("192.0.2.2"), "other clients have their own bucket")
}

func TestLimiter_ZeroConfigAllowsEverything(t *testing.T) {
	limiter := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow("192.0.2.1"))
	}
}

func TestLimiter_CleanupResetsClients(t *testing.T) {
	limiter := New(Config{PerClientRate: rate.Every(time.Hour), PerClientBurst: 1, CleanupInterval: time.Millisecond})

	assert.True(t, limiter.Allow("192.0.2.1"))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, limiter.Allow("192.0.2.1"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "forwarded first hop", headers: map[string]string{"X-Forwarded-For": " 198.51.100.7 , 10.0.0.1"}, remote: "10.0.0.1:1", want: "198.51.100.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.8"}, remote: "10.0.0.1:1", want: "198.51.100.8"},
		{name: "remote without port", remote: "192.0.2.9", want: "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

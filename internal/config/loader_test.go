// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.False(t, cfg.Canonical)
	assert.Empty(t, cfg.DefaultHeaders)
	assert.Equal(t, "headernorm:defaults", cfg.Redis.Key)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:9090"
upstream: "http://backend:8080"
canonical: true
rewriteUpstreamKeys: true
defaultHeaders:
  x-api-version: "2"
  Accept: application/json
rateLimit:
  enabled: true
  requests: 50
  window: 30s
`)

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
	assert.Equal(t, "http://backend:8080", cfg.Upstream)
	assert.True(t, cfg.Canonical)
	assert.True(t, cfg.RewriteUpstreamKeys)
	assert.Equal(t, map[string]string{"x-api-version": "2", "Accept": "application/json"}, cfg.DefaultHeaders)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 50, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	// Untouched keys keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
canonical: false
defaultHeaders:
  X-Api-Version: "1"
  X-Tenant: acme
`)
	t.Setenv(EnvListen, ":7070")
	t.Setenv(EnvCanonical, "true")
	t.Setenv(EnvDefaultHeaders, `{"X-Api-Version": "3"}`)
	t.Setenv(EnvUpstreamRate, "25")
	t.Setenv(EnvUpstreamBurst, "50")

	l := NewLoader(path, "test")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.True(t, cfg.Canonical)
	assert.Equal(t, "3", cfg.DefaultHeaders["X-Api-Version"])
	assert.Equal(t, "acme", cfg.DefaultHeaders["X-Tenant"])
	assert.Equal(t, 25.0, cfg.UpstreamLimit.Rate)
	assert.Equal(t, 50, cfg.UpstreamLimit.Burst)
	assert.True(t, cfg.UpstreamLimit.Enabled())

	assert.Contains(t, l.ConsumedEnvKeys, EnvListen)
	assert.Contains(t, l.ConsumedEnvKeys, EnvDefaultHeaders)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "listen: \":8080\"\ncanonicalize: true\n")

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "test").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_InvalidDefaultHeaderName(t *testing.T) {
	path := writeConfig(t, "defaultHeaders:\n  \"Bad Header\": x\n")

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid header name")
}

func TestLoadFile_IgnoresEnv(t *testing.T) {
	path := writeConfig(t, "listen: \":9191\"\n")
	t.Setenv(EnvListen, ":7070")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.Listen)
}

func TestNormalizerOptions_ExtraOverrides(t *testing.T) {
	cfg := Default()
	cfg.Canonical = true
	cfg.DefaultHeaders = map[string]string{"X-A": "file", "X-B": "file"}

	opts := cfg.NormalizerOptions(map[string]string{"X-B": "redis", "X-C": "redis"})

	assert.True(t, opts.Canonical)
	assert.Equal(t, map[string]string{"X-A": "file", "X-B": "redis", "X-C": "redis"}, opts.DefaultHeaders)
	// The config map itself is not mutated.
	assert.Equal(t, "file", cfg.DefaultHeaders["X-B"])
}

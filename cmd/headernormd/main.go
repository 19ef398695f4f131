// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command headernormd is a gateway that normalizes request header names and
// injects default headers before forwarding to an upstream.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/headernorm/internal/config"
	"github.com/ManuGH/headernorm/internal/daemon"
	"github.com/ManuGH/headernorm/internal/defaults"
	"github.com/ManuGH/headernorm/internal/gateway"
	"github.com/ManuGH/headernorm/internal/headernorm"
	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/ManuGH/headernorm/internal/ratelimit"
	"github.com/ManuGH/headernorm/internal/telemetry"
	"golang.org/x/time/rate"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

// envConfigPath names the config file when --config is not given.
const envConfigPath = "HEADERNORM_CONFIG"

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "headernormd",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString(envConfigPath, ""))
	}

	// Precedence: ENV > File > Defaults
	loader := config.NewLoader(path, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Sampling:       cfg.Tracing.Sampling,

		Canonical:           cfg.Canonical,
		RewriteUpstreamKeys: cfg.RewriteUpstreamKeys,
	})
	if err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "tracing.init_failed").Msg("failed to initialize tracing")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "tracing.shutdown_failed").Msg("tracing shutdown failed")
		}
	}()

	srv, err := gateway.New(gatewayConfig(cfg), headernorm.New(cfg.NormalizerOptions(nil)), xglog.WithComponent("gateway"))
	if err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "gateway.init_failed").Msg("failed to build gateway")
	}

	var remote defaults.Source
	if cfg.Redis.Enabled() {
		r, err := defaults.NewRedis(ctx, defaults.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			// Static defaults still apply; shared ones are picked up on restart.
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "defaults.redis_unavailable").
				Msg("shared default headers disabled")
		} else {
			defer func() { _ = r.Close() }()
			remote = r
		}
	}

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Listen).
		Str(xglog.FieldUpstream, maskURL(cfg.Upstream)).
		Bool("canonical", cfg.Canonical).
		Int("default_headers", len(cfg.DefaultHeaders)).
		Bool("upstream_limit", cfg.UpstreamLimit.Enabled()).
		Msg("starting headernormd")

	app := daemon.NewApp(logger, config.NewHolder(cfg, loader), srv, remote)
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon stopped with error")
		stop()
		os.Exit(1)
	}
	logger.Info().Str(xglog.FieldEvent, "shutdown.complete").Msg("headernormd stopped")
}

func gatewayConfig(cfg config.Config) gateway.Config {
	gc := gateway.Config{
		Listen:              cfg.Listen,
		Upstream:            cfg.Upstream,
		RewriteUpstreamKeys: cfg.RewriteUpstreamKeys,
		RateLimitEnabled:    cfg.RateLimit.Enabled,
		RateLimitRequests:   cfg.RateLimit.Requests,
		RateLimitWindow:     cfg.RateLimit.Window,
		ShutdownTimeout:     cfg.ShutdownTimeout,
		UpstreamLimit: ratelimit.Config{
			GlobalRate:     rate.Limit(cfg.UpstreamLimit.Rate),
			GlobalBurst:    cfg.UpstreamLimit.Burst,
			PerClientRate:  rate.Limit(cfg.UpstreamLimit.PerClientRate),
			PerClientBurst: cfg.UpstreamLimit.PerClientBurst,
		},
	}
	if cfg.Tracing.Enabled {
		gc.TracingService = cfg.LogService
	}
	return gc
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the headernormd runtime: the gateway server, config
// hot reload and the shared defaults poller.
package daemon

import (
	"context"
	"maps"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/headernorm/internal/config"
	"github.com/ManuGH/headernorm/internal/defaults"
	"github.com/ManuGH/headernorm/internal/headernorm"
	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/rs/zerolog"
)

// Server is the part of the gateway the daemon drives.
type Server interface {
	Run(ctx context.Context) error
	SetNormalizer(n *headernorm.Normalizer)
	SetUpstream(raw string, rewriteKeys bool) error
}

// App owns the long-lived runtime lifecycle.
type App struct {
	logger       zerolog.Logger
	holder       *config.Holder
	server       Server
	remote       defaults.Source // nil when no shared defaults are configured
	reloadSignal os.Signal

	mu             sync.Mutex
	remoteDefaults map[string]string

	// applyMu serializes Apply so the last stored normalizer always reflects
	// the latest config and shared defaults.
	applyMu sync.Mutex
}

// NewApp creates a new App orchestrator. remote may be nil.
func NewApp(logger zerolog.Logger, holder *config.Holder, server Server, remote defaults.Source) *App {
	return &App{
		logger:       logger,
		holder:       holder,
		server:       server,
		remote:       remote,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or the
// server fails.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return ErrMissingServer
	}
	if a.holder == nil {
		return ErrMissingConfig
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if it cannot start.
	if err := a.holder.StartWatcher(ctx); err != nil {
		a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
	}
	defer a.holder.Stop()

	applyCh := make(chan config.Config, 1)
	a.holder.RegisterListener(applyCh)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-applyCh:
				a.Apply(cfg)
			}
		}
	})

	if a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.holder.Reload(ctx); err != nil {
						a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.remote != nil {
		refresh := a.holder.Get().Redis.Refresh
		if refresh <= 0 {
			refresh = 30 * time.Second
		}
		g.Go(func() error {
			defaults.Poll(ctx, a.remote, refresh, a.setRemoteDefaults)
			return nil
		})
	}

	g.Go(func() error {
		return a.server.Run(ctx)
	})

	return g.Wait()
}

// setRemoteDefaults records a new shared defaults set and reapplies the
// current config with it.
func (a *App) setRemoteDefaults(m map[string]string) {
	a.mu.Lock()
	a.remoteDefaults = m
	a.mu.Unlock()
	a.Apply(a.holder.Get())
}

// Apply rebuilds the normalizer and upstream from cfg plus the latest shared
// defaults and applies the log level. Invalid options keep the running normalizer.
func (a *App) Apply(cfg config.Config) {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	a.mu.Lock()
	remote := maps.Clone(a.remoteDefaults)
	a.mu.Unlock()

	if cfg.LogLevel != "" {
		if err := xglog.SetLevel(cfg.LogLevel); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "log.level_rejected").Msg("invalid log level, keeping current")
		}
	}

	opts := cfg.NormalizerOptions(remote)
	if err := opts.Validate(); err != nil {
		a.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "normalizer.rebuild_rejected").
			Msg("default headers are invalid, keeping current normalizer")
	} else {
		a.server.SetNormalizer(headernorm.New(opts))
		a.logger.Info().
			Str(xglog.FieldEvent, "normalizer.rebuilt").
			Bool("canonical", opts.Canonical).
			Int("default_headers", len(opts.DefaultHeaders)).
			Msg("header normalizer rebuilt")
	}

	if err := a.server.SetUpstream(cfg.Upstream, cfg.RewriteUpstreamKeys); err != nil {
		a.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "upstream.update_rejected").
			Msg("upstream is invalid, keeping current target")
	}
}

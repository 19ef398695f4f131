// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package defaults loads the default headers the normalizer injects. Headers
// come from static configuration and, optionally, a shared Redis hash so a
// fleet of gateways can be updated at once.
package defaults

import (
	"context"
	"fmt"
	"maps"
	"time"

	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/ManuGH/headernorm/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Source yields a set of default headers.
type Source interface {
	Name() string
	Load(ctx context.Context) (map[string]string, error)
}

// Static is a fixed header set, usually from the config file.
type Static map[string]string

// Name implements Source.
func (Static) Name() string { return "static" }

// Load implements Source.
func (s Static) Load(context.Context) (map[string]string, error) {
	return maps.Clone(map[string]string(s)), nil
}

// Merge loads every source in order. Later sources override earlier ones key by key.
func Merge(ctx context.Context, sources ...Source) (map[string]string, error) {
	out := make(map[string]string)
	for _, src := range sources {
		m, err := src.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load defaults from %s: %w", src.Name(), err)
		}
		maps.Copy(out, m)
	}
	return out, nil
}

// Poll loads src every interval and calls apply when the result differs from
// the previous successful load. The first load happens immediately. Load errors
// are logged and the previous set stays in effect. Poll returns when ctx is done.
func Poll(ctx context.Context, src Source, interval time.Duration, apply func(map[string]string)) {
	logger := xglog.WithComponent("defaults")

	var last map[string]string
	loaded := false
	tracer := telemetry.Tracer("headernorm/defaults")
	refresh := func() {
		spanCtx, span := tracer.Start(ctx, "defaults.refresh")
		defer span.End()
		span.SetAttributes(attribute.String("defaults.source", src.Name()))

		m, err := src.Load(spanCtx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			if ctx.Err() == nil {
				logger.Warn().
					Err(err).
					Str(xglog.FieldEvent, "defaults.load_failed").
					Str("source", src.Name()).
					Msg("failed to refresh default headers")
			}
			return
		}
		if loaded && maps.Equal(last, m) {
			return
		}
		last, loaded = m, true
		logger.Info().
			Str(xglog.FieldEvent, "defaults.updated").
			Str("source", src.Name()).
			Int("count", len(m)).
			Msg("default headers updated")
		apply(maps.Clone(m))
	}

	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

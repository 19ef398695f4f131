// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package headernorm

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsNormalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headernorm_events_total",
		Help: "Events passed through the header normalizer",
	}, []string{"canonical"})

	headersNormalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headernorm_headers_normalized_total",
		Help: "Request header keys rewritten by the normalizer",
	}, []string{"canonical"})

	defaultsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headernorm_defaults_applied_total",
		Help: "Default headers added because the request did not carry them",
	}, []string{"canonical"})

	keyCollisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headernorm_key_collisions_total",
		Help: "Request header keys merged into an already present normalized key",
	}, []string{"canonical"})
)

func recordStats(canonical bool, st Stats) {
	label := strconv.FormatBool(canonical)
	eventsNormalized.WithLabelValues(label).Inc()
	headersNormalized.WithLabelValues(label).Add(float64(st.Normalized))
	defaultsApplied.WithLabelValues(label).Add(float64(st.Defaulted))
	if st.Collisions > 0 {
		keyCollisions.WithLabelValues(label).Add(float64(st.Collisions))
	}
}

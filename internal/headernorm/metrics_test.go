// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package headernorm

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestApply_RecordsMetrics(t *testing.T) {
	events := testutil.ToFloat64(eventsNormalized.WithLabelValues("true"))
	normalized := testutil.ToFloat64(headersNormalized.WithLabelValues("true"))
	defaulted := testutil.ToFloat64(defaultsApplied.WithLabelValues("true"))
	collisions := testutil.ToFloat64(keyCollisions.WithLabelValues("true"))

	n := New(Options{Canonical: true, DefaultHeaders: map[string]string{"accept": "*/*"}})
	n.Apply(&Event{Headers: map[string]string{"content-type": "a", "Content-Type": "b", "x-one": "1"}})

	assert.Equal(t, events+1, testutil.ToFloat64(eventsNormalized.WithLabelValues("true")))
	assert.Equal(t, normalized+2, testutil.ToFloat64(headersNormalized.WithLabelValues("true")))
	assert.Equal(t, defaulted+1, testutil.ToFloat64(defaultsApplied.WithLabelValues("true")))
	assert.Equal(t, collisions+1, testutil.ToFloat64(keyCollisions.WithLabelValues("true")))
}

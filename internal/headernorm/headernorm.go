// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package headernorm rewrites request header names to a single spelling and
// fills in default headers the request does not carry.
//
// The normalizer is a middleware object with a Before hook operating on an
// Event. HTTP mounts it on a net/http handler chain.
package headernorm

import (
	"context"
	"sort"
	"strings"

	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/ManuGH/headernorm/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Normalizer. The zero value lowercases every header name
// and adds no defaults.
type Options struct {
	// Canonical selects canonical casing ("Content-Type") instead of lowercase.
	Canonical bool

	// DefaultHeaders are added when the request does not carry them.
	// Their names go through the same key rule as request headers.
	DefaultHeaders map[string]string

	// NormalizeHeaderKey overrides the key rule entirely. Canonical is ignored when set.
	NormalizeHeaderKey func(key string) string
}

// Event is the request event a Middleware operates on.
// A nil header map means the event has no headers of that shape.
type Event struct {
	Headers           map[string]string   `json:"headers,omitempty"`
	MultiValueHeaders map[string][]string `json:"multiValueHeaders,omitempty"`

	// Raw copies of the maps as they were before normalization.
	RawHeaders           map[string]string   `json:"rawHeaders,omitempty"`
	RawMultiValueHeaders map[string][]string `json:"rawMultiValueHeaders,omitempty"`
}

// Middleware is a hook object invoked before the request handler runs.
type Middleware interface {
	Before(ctx context.Context, ev *Event) error
}

// Normalizer is the header normalization middleware. It is immutable after New
// and safe for concurrent use.
type Normalizer struct {
	key       func(string) string
	canonical bool

	defaults      map[string]string
	multiDefaults map[string][]string
}

var _ Middleware = (*Normalizer)(nil)

// New builds a Normalizer from opts.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		key:           keyRule(opts),
		canonical:     opts.Canonical,
		defaults:      make(map[string]string, len(opts.DefaultHeaders)),
		multiDefaults: make(map[string][]string, len(opts.DefaultHeaders)),
	}
	for _, k := range sortedKeys(opts.DefaultHeaders) {
		nk := n.key(k)
		n.defaults[nk] = opts.DefaultHeaders[k]
		n.multiDefaults[nk] = []string{opts.DefaultHeaders[k]}
	}
	return n
}

// Key returns the normalized form of a header name.
func (n *Normalizer) Key(name string) string {
	return n.key(name)
}

// Defaults returns a copy of the normalized default headers.
func (n *Normalizer) Defaults() map[string]string {
	out := make(map[string]string, len(n.defaults))
	for k, v := range n.defaults {
		out[k] = v
	}
	return out
}

// Before normalizes ev in place. It never fails; the error return satisfies Middleware.
func (n *Normalizer) Before(ctx context.Context, ev *Event) error {
	st := n.Apply(ev)
	if ev == nil {
		return nil
	}
	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.HeaderNormAttributes(n.canonical, st.Normalized, st.Defaulted, st.Collisions)...,
	)
	if st.Normalized == 0 && st.Defaulted == 0 {
		return nil
	}

	logger := xglog.WithComponentFromContext(ctx, "headernorm")
	logger.Debug().
		Str(xglog.FieldEvent, "headers.normalized").
		Int("normalized", st.Normalized).
		Int("defaulted", st.Defaulted).
		Int("collisions", st.Collisions).
		Bool("canonical", n.canonical).
		Msg("request headers normalized")
	return nil
}

// Stats summarises one Apply call.
type Stats struct {
	Normalized int // distinct normalized keys taken from the request
	Defaulted  int // default headers the request did not carry
	Collisions int // input keys that landed on an already used normalized key
}

// merge folds the counts of one header map into st. Both maps of an event
// usually describe the same headers, so the larger count wins.
func (st *Stats) merge(normalized, defaulted, collisions int) {
	st.Normalized = max(st.Normalized, normalized)
	st.Defaulted = max(st.Defaulted, defaulted)
	st.Collisions = max(st.Collisions, collisions)
}

// Apply normalizes ev in place and reports what it did. A nil event is a no-op.
func (n *Normalizer) Apply(ev *Event) Stats {
	var st Stats
	if ev == nil {
		return st
	}

	if ev.Headers != nil {
		ev.RawHeaders = cloneHeaders(ev.Headers)
		ev.Headers = n.normalizeHeaders(ev.Headers, &st)
	}
	if ev.MultiValueHeaders != nil {
		ev.RawMultiValueHeaders = cloneMultiValueHeaders(ev.MultiValueHeaders)
		ev.MultiValueHeaders = n.normalizeMultiValueHeaders(ev.MultiValueHeaders, &st)
	}

	recordStats(n.canonical, st)
	return st
}

func (n *Normalizer) normalizeHeaders(in map[string]string, st *Stats) map[string]string {
	out := make(map[string]string, len(in)+len(n.defaults))
	for k, v := range n.defaults {
		out[k] = v
	}

	seen := make(map[string]struct{}, len(in))
	collisions := 0
	for _, k := range sortedKeys(in) {
		nk := n.key(k)
		if _, dup := seen[nk]; dup {
			out[nk] = out[nk] + ", " + in[k]
			collisions++
			continue
		}
		seen[nk] = struct{}{}
		out[nk] = in[k]
	}
	st.merge(len(seen), countMissing(n.defaults, seen), collisions)
	return out
}

func (n *Normalizer) normalizeMultiValueHeaders(in map[string][]string, st *Stats) map[string][]string {
	out := make(map[string][]string, len(in)+len(n.multiDefaults))
	for k, v := range n.multiDefaults {
		out[k] = append([]string(nil), v...)
	}

	seen := make(map[string]struct{}, len(in))
	collisions := 0
	for _, k := range sortedKeys(in) {
		nk := n.key(k)
		if _, dup := seen[nk]; dup {
			out[nk] = append(out[nk], in[k]...)
			collisions++
			continue
		}
		seen[nk] = struct{}{}
		out[nk] = append([]string(nil), in[k]...)
	}
	st.merge(len(seen), countMissing(n.multiDefaults, seen), collisions)
	return out
}

func countMissing[V any](defaults map[string]V, seen map[string]struct{}) int {
	missing := 0
	for k := range defaults {
		if _, ok := seen[k]; !ok {
			missing++
		}
	}
	return missing
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneMultiValueHeaders(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// joinValues flattens repeated header values the way HTTP permits combining them.
func joinValues(values []string) string {
	return strings.Join(values, ", ")
}

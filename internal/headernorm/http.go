// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package headernorm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	xglog "github.com/ManuGH/headernorm/internal/log"
)

type ctxKey struct{}

// ContextWithEvent stores a normalized event in ctx.
func ContextWithEvent(ctx context.Context, ev *Event) context.Context {
	return context.WithValue(ctx, ctxKey{}, ev)
}

// EventFromContext returns the event stored by HTTP, if any.
func EventFromContext(ctx context.Context) (*Event, bool) {
	if ctx == nil {
		return nil, false
	}
	ev, ok := ctx.Value(ctxKey{}).(*Event)
	return ev, ok && ev != nil
}

// EventFromRequest builds an Event from the request headers. Go moves the Host
// header into r.Host, so it is put back here. Repeated values are joined with
// ", " in Headers and kept apart in MultiValueHeaders.
func EventFromRequest(r *http.Request) *Event {
	multi := make(map[string][]string, len(r.Header)+1)
	for k, v := range r.Header {
		multi[k] = append([]string(nil), v...)
	}
	if r.Host != "" {
		if _, ok := multi["Host"]; !ok {
			multi["Host"] = []string{r.Host}
		}
	}

	single := make(map[string]string, len(multi))
	for k, v := range multi {
		single[k] = joinValues(v)
	}
	return &Event{Headers: single, MultiValueHeaders: multi}
}

// ToHTTPHeader converts the normalized event back to an http.Header, keeping
// the normalized spellings verbatim. Host is left out; it travels in the request line.
func ToHTTPHeader(ev *Event) http.Header {
	h := make(http.Header, len(ev.MultiValueHeaders))
	for k, v := range ev.MultiValueHeaders {
		if strings.EqualFold(k, "Host") {
			continue
		}
		h[k] = append([]string(nil), v...)
	}
	return h
}

// HTTP mounts m on a net/http handler chain. The normalized event is attached
// to the request context. Headers that m added (defaults) are also set on a
// copy of r.Header under their Go canonical key, so r.Header.Get keeps working.
func HTTP(m Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ev := EventFromRequest(r)
			if err := m.Before(r.Context(), ev); err != nil {
				reqID := xglog.RequestIDFromContext(r.Context())
				logger := xglog.WithComponentFromContext(r.Context(), "headernorm")
				logger.Warn().
					Err(err).
					Str(xglog.FieldEvent, "headers.rejected").
					Str(xglog.FieldPath, r.URL.Path).
					Msg("header normalization failed")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":     "invalid_headers",
					"detail":    err.Error(),
					"requestId": reqID,
				})
				return
			}

			r2 := r.WithContext(ContextWithEvent(r.Context(), ev))
			r2.Header = r.Header.Clone()
			if r2.Header == nil {
				r2.Header = make(http.Header)
			}
			for k, v := range addedHeaders(m, r.Header, ev) {
				r2.Header[http.CanonicalHeaderKey(k)] = v
			}

			next.ServeHTTP(w, r2)
		})
	}
}

// keyedDefaults is implemented by middleware that can say which defaults it
// injects and how it spells request keys, such as *Normalizer.
type keyedDefaults interface {
	Key(name string) string
	Defaults() map[string]string
}

// addedHeaders returns the headers of ev that the request did not carry.
func addedHeaders(m Middleware, in http.Header, ev *Event) map[string][]string {
	out := make(map[string][]string)

	if kd, ok := m.(keyedDefaults); ok {
		carried := make(map[string]struct{}, len(in))
		for k := range in {
			carried[kd.Key(k)] = struct{}{}
		}
		for k := range kd.Defaults() {
			if _, ok := carried[k]; ok || strings.EqualFold(k, "Host") {
				continue
			}
			if v, ok := ev.MultiValueHeaders[k]; ok {
				out[k] = append([]string(nil), v...)
			}
		}
		return out
	}

	for k, v := range ev.MultiValueHeaders {
		if strings.EqualFold(k, "Host") {
			continue
		}
		if _, present := in[http.CanonicalHeaderKey(k)]; present {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

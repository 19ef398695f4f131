// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package headernorm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
	req.Header.Add("Accept", "text/html")
	req.Header.Add("Accept", "application/json")

	ev := EventFromRequest(req)

	assert.Equal(t, "text/html, application/json", ev.Headers["Accept"])
	assert.Equal(t, []string{"text/html", "application/json"}, ev.MultiValueHeaders["Accept"])
	assert.Equal(t, "example.com", ev.Headers["Host"])

	// The event owns its slices.
	ev.MultiValueHeaders["Accept"][0] = "changed"
	assert.Equal(t, "text/html", req.Header.Values("Accept")[0])
}

func TestToHTTPHeader_KeepsSpellingAndDropsHost(t *testing.T) {
	ev := &Event{MultiValueHeaders: map[string][]string{
		"host":         {"example.com"},
		"content-type": {"text/plain"},
		"ETag":         {`"1"`},
	}}

	h := ToHTTPHeader(ev)

	assert.Equal(t, http.Header{"content-type": {"text/plain"}, "ETag": {`"1"`}}, h)
}

func TestHTTP_AttachesEventAndAddsDefaults(t *testing.T) {
	n := New(Options{DefaultHeaders: map[string]string{"X-Api-Version": "1", "Accept": "*/*"}})

	var (
		gotEvent  *Event
		gotHeader http.Header
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ev, ok := EventFromContext(r.Context())
		require.True(t, ok)
		gotEvent = ev
		gotHeader = r.Header
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	HTTP(n)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "text/html", gotEvent.Headers["accept"])
	assert.Equal(t, "text/plain", gotEvent.Headers["content-type"])
	assert.Equal(t, "1", gotEvent.Headers["x-api-version"])
	assert.Equal(t, "example.com", gotEvent.Headers["host"])
	assert.Equal(t, "text/plain", gotEvent.RawHeaders["Content-Type"])

	assert.Equal(t, "1", gotHeader.Get("X-Api-Version"))
	assert.Equal(t, "text/html", gotHeader.Get("Accept"))
	assert.Empty(t, gotHeader.Get("Host"))

	// The caller's request is not modified.
	assert.Empty(t, req.Header.Get("X-Api-Version"))
}

func TestHTTP_CustomRuleDoesNotDuplicateHeaders(t *testing.T) {
	n := New(Options{NormalizeHeaderKey: func(k string) string { return "x-norm-" + LowerKey(k) }})

	var gotHeader http.Header
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { gotHeader = r.Header })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "*/*")
	HTTP(n)(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, http.Header{"Accept": {"*/*"}}, gotHeader)
}

type failingMiddleware struct{ err error }

func (f failingMiddleware) Before(context.Context, *Event) error { return f.err }

func TestHTTP_BeforeErrorAnswers400(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(xglog.ContextWithRequestID(req.Context(), "req-42"))
	rec := httptest.NewRecorder()

	HTTP(failingMiddleware{err: errors.New("bad header")})(next).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_headers", body["error"])
	assert.Equal(t, "bad header", body["detail"])
	assert.Equal(t, "req-42", body["requestId"])
}

func TestHTTP_GenericMiddlewareAddsNewKeys(t *testing.T) {
	m := middlewareFunc(func(_ context.Context, ev *Event) error {
		ev.MultiValueHeaders["x-added"] = []string{"yes"}
		return nil
	})

	var gotHeader http.Header
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { gotHeader = r.Header })
	HTTP(m)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "yes", gotHeader.Get("X-Added"))
}

type middlewareFunc func(context.Context, *Event) error

func (f middlewareFunc) Before(ctx context.Context, ev *Event) error { return f(ctx, ev) }

func TestEventFromContext_Missing(t *testing.T) {
	_, ok := EventFromContext(context.Background())
	assert.False(t, ok)
}

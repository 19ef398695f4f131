// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/ManuGH/headernorm/internal/headernorm"
	xglog "github.com/ManuGH/headernorm/internal/log"
	"github.com/ManuGH/headernorm/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// forwardedHeaders are set by the proxy itself and never taken from the client.
var forwardedHeaders = []string{
	"Forwarded",
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
}

// upstream forwards requests to a single target.
type upstream struct {
	target      *url.URL
	rewriteKeys bool
	proxy       *httputil.ReverseProxy
	logger      zerolog.Logger
}

func newUpstream(raw string, rewriteKeys bool, transport http.RoundTripper, logger zerolog.Logger) (*upstream, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", raw, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", raw)
	}
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	u := &upstream{target: target, rewriteKeys: rewriteKeys, logger: logger}
	u.proxy = &httputil.ReverseProxy{
		Rewrite:      u.rewrite,
		Transport:    otelhttp.NewTransport(transport),
		ErrorHandler: u.handleError,
	}
	return u, nil
}

func (u *upstream) rewrite(pr *httputil.ProxyRequest) {
	if u.rewriteKeys {
		if ev, ok := headernorm.EventFromContext(pr.In.Context()); ok {
			pr.Out.Header = headernorm.ToHTTPHeader(ev)
			dropHopHeaders(pr.Out.Header)
			dropHeaders(pr.Out.Header, forwardedHeaders)
		}
	}
	pr.SetURL(u.target)
	pr.SetXForwarded()

	trace.SpanFromContext(pr.In.Context()).SetAttributes(
		telemetry.UpstreamAttributes(u.target.Host, u.rewriteKeys)...,
	)
}

func (u *upstream) handleError(w http.ResponseWriter, r *http.Request, err error) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(telemetry.ErrorAttributes(err, "upstream_unavailable")...)
	span.SetStatus(codes.Error, err.Error())

	logger := xglog.WithContext(r.Context(), u.logger.With().Str(xglog.FieldComponent, "proxy").Logger())
	logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "proxy.upstream_failed").
		Str(xglog.FieldUpstream, u.target.Host).
		Str(xglog.FieldPath, r.URL.Path).
		Msg("upstream request failed")

	writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", "The upstream service could not be reached.",
		xglog.RequestIDFromContext(r.Context()))
}

// dropHopHeaders removes hop-by-hop headers under any spelling, including
// those named by Connection.
func dropHopHeaders(h http.Header) {
	drop := make(map[string]struct{}, len(hopHeaders))
	for _, name := range hopHeaders {
		drop[strings.ToLower(name)] = struct{}{}
	}
	for k, v := range h {
		if strings.EqualFold(k, "Connection") {
			for _, line := range v {
				for _, f := range strings.Split(line, ",") {
					if f = strings.TrimSpace(f); f != "" {
						drop[strings.ToLower(f)] = struct{}{}
					}
				}
			}
		}
	}
	for k := range h {
		if _, ok := drop[strings.ToLower(k)]; ok {
			delete(h, k)
		}
	}
}

// dropHeaders removes names from h under any spelling.
func dropHeaders(h http.Header, names []string) {
	for k := range h {
		for _, name := range names {
			if strings.EqualFold(k, name) {
				delete(h, k)
				break
			}
		}
	}
}

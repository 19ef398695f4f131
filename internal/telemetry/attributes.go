// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Header normalization attributes
	HeaderNormCanonicalKey  = "headernorm.canonical"
	HeaderNormNormalizedKey = "headernorm.normalized"
	HeaderNormDefaultedKey  = "headernorm.defaulted"
	HeaderNormCollisionsKey = "headernorm.collisions"

	// Proxy attributes
	UpstreamHostKey     = "upstream.host"
	UpstreamRewriteKeys = "upstream.rewrite_keys"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// HeaderNormAttributes describes one normalization pass.
func HeaderNormAttributes(canonical bool, normalized, defaulted, collisions int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(HeaderNormCanonicalKey, canonical),
		attribute.Int(HeaderNormNormalizedKey, normalized),
		attribute.Int(HeaderNormDefaultedKey, defaulted),
		attribute.Int(HeaderNormCollisionsKey, collisions),
	}
}

// UpstreamAttributes describes the proxy target of a request.
func UpstreamAttributes(host string, rewriteKeys bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if host != "" {
		attrs = append(attrs, attribute.String(UpstreamHostKey, host))
	}
	attrs = append(attrs, attribute.Bool(UpstreamRewriteKeys, rewriteKeys))
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/debug/headers", "http://localhost:8080/debug/headers", 200)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/debug/headers")
	verifyAttribute(t, attrs, HTTPURLKey, "http://localhost:8080/debug/headers")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestHeaderNormAttributes(t *testing.T) {
	attrs := HeaderNormAttributes(true, 7, 2, 1)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}
	verifyBoolAttribute(t, attrs, HeaderNormCanonicalKey, true)
	verifyIntAttribute(t, attrs, HeaderNormNormalizedKey, 7)
	verifyIntAttribute(t, attrs, HeaderNormDefaultedKey, 2)
	verifyIntAttribute(t, attrs, HeaderNormCollisionsKey, 1)
}

func TestUpstreamAttributes(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		rewrite bool
		wantLen int
	}{
		{"with host", "backend:8080", true, 2},
		{"without host", "", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := UpstreamAttributes(tt.host, tt.rewrite)
			if len(attrs) != tt.wantLen {
				t.Fatalf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			if tt.host != "" {
				verifyAttribute(t, attrs, UpstreamHostKey, tt.host)
			}
			verifyBoolAttribute(t, attrs, UpstreamRewriteKeys, tt.rewrite)
		})
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("dial tcp: refused"), "upstream_unreachable")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "upstream_unreachable")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

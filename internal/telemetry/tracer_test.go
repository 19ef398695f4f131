// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewProvider_DisabledInstallsNoop(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, Exporter: "grpc"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if provider.tp != nil {
		t.Error("disabled provider must not own an SDK provider")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "request")
	defer span.End()
	if span.IsRecording() {
		t.Error("disabled tracing must not record spans")
	}
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "headernormd", Exporter: "zipkin"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
	want := "unsupported exporter type: zipkin (supported: grpc, http)"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewProvider_HTTPExporterRecordsSpans(t *testing.T) {
	t.Cleanup(func() { _, _ = NewProvider(context.Background(), Config{}) })

	// The OTLP HTTP exporter connects lazily, so construction succeeds offline.
	provider, err := NewProvider(context.Background(), Config{
		Enabled:     true,
		ServiceName: "headernormd",
		Exporter:    "http",
		Endpoint:    "127.0.0.1:4318",
		Sampling:    1,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if provider.tp == nil {
		t.Fatal("expected SDK provider")
	}

	_, span := Tracer("test").Start(context.Background(), "request")
	if !span.IsRecording() {
		t.Error("sampling 1 must record root spans")
	}
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = provider.Shutdown(ctx)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{ratio: 1, root: "root:AlwaysOnSampler"},
		{ratio: 2, root: "root:AlwaysOnSampler"},
		{ratio: 0, root: "root:AlwaysOffSampler"},
		{ratio: -1, root: "root:AlwaysOffSampler"},
		{ratio: 0.25, root: "root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := newSampler(tt.ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{") {
			t.Errorf("ratio %v: sampler %q does not follow the parent decision", tt.ratio, desc)
		}
		if !strings.Contains(desc, tt.root) {
			t.Errorf("ratio %v: sampler %q, want %s", tt.ratio, desc, tt.root)
		}
	}
}

func TestNewResource_RecordsNormalizerMode(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		ServiceName:         "headernormd",
		ServiceVersion:      "v1.2.3",
		Canonical:           true,
		RewriteUpstreamKeys: false,
	})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	set := res.Set()

	checks := map[attribute.Key]attribute.Value{
		semconv.ServiceNameKey:                attribute.StringValue("headernormd"),
		semconv.ServiceVersionKey:             attribute.StringValue("v1.2.3"),
		attribute.Key(HeaderNormCanonicalKey): attribute.BoolValue(true),
		attribute.Key(UpstreamRewriteKeys):    attribute.BoolValue(false),
	}
	for key, want := range checks {
		got, ok := set.Value(key)
		if !ok {
			t.Errorf("resource missing %s", key)
			continue
		}
		if got != want {
			t.Errorf("%s = %v, want %v", key, got.Emit(), want.Emit())
		}
	}
	if _, ok := set.Value(semconv.DeploymentEnvironmentKey); ok {
		t.Error("empty environment must be omitted")
	}
}

func TestProvider_ShutdownWithoutSDK(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := (&Provider{}).Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	var nilProvider *Provider
	if err := nilProvider.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown: %v", err)
	}
}

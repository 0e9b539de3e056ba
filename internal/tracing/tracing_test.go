package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
	if provider.Tracer("x") == nil {
		t.Error("expected a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on disabled provider returned %v", err)
	}
}

func TestNewProvider_InvalidSamplingRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.5} {
		_, err := NewProvider(Config{Enabled: true, SamplingRate: rate}, nil)
		if err == nil {
			t.Errorf("expected error for sampling rate %f", rate)
		}
	}
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, ExporterType: "zipkin", SamplingRate: 0.5}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestNewProvider_Enabled(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
	}{
		{"http exporter", ExporterOTLPHTTP},
		{"grpc exporter", ExporterOTLPGRPC},
		{"default exporter", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Exporters connect lazily, so no collector is needed here.
			provider, err := NewProvider(Config{
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporterType,
				OTLPEndpoint: "localhost:4318",
				SamplingRate: 1.0,
				InsecureMode: true,
			}, nil)
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}
			if provider.Tracer(TracerName) == nil {
				t.Error("expected a tracer")
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		})
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v).Description() = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"go.opentelemetry.io/otel"
)

func TestSetupTracingDisabledInstallsNothing(t *testing.T) {
	prev := otel.GetTracerProvider()
	tel := NewTelemetry(config.TelemetryConfig{})
	if err := tel.SetupTracing(context.Background(), "trajgen"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if tel.TracerProvider() != nil || otel.GetTracerProvider() != prev {
		t.Fatalf("disabled telemetry must leave the global provider alone")
	}
}

func TestSetupTracingInstallsGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tel := NewTelemetry(config.TelemetryConfig{Enabled: true, MetricsPort: 9090, OTLPEndpoint: "127.0.0.1:4318"})
	if err := tel.SetupTracing(context.Background(), "trajgen"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	tp := tel.TracerProvider()
	if tp == nil || otel.GetTracerProvider() != tp {
		t.Fatalf("expected the sdk provider to be installed globally")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "check")
	if !span.IsRecording() {
		t.Fatalf("spans should record once tracing is set up")
	}
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

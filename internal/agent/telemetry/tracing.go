package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultOTLPEndpoint = "localhost:4318"

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP.
// It does nothing when telemetry is disabled.
func (t *Telemetry) SetupTracing(ctx context.Context, serviceName string) error {
	if t == nil || !t.config.Enabled {
		return nil
	}
	endpoint := t.config.OTLPEndpoint
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("otlp init: %w", err)
	}
	t.installTracing(sdktrace.WithBatcher(exporter), serviceName)
	t.logger.Printf("exporting traces to %s", endpoint)
	return nil
}

func (t *Telemetry) installTracing(processor sdktrace.TracerProviderOption, serviceName string) {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.namespace", "trajgen"),
	)
	t.tracer = sdktrace.NewTracerProvider(processor, sdktrace.WithResource(res))
	otel.SetTracerProvider(t.tracer)
}

// TracerProvider returns the installed provider, or nil when tracing is off.
func (t *Telemetry) TracerProvider() *sdktrace.TracerProvider {
	if t == nil {
		return nil
	}
	return t.tracer
}

// Package otel wires process-level OpenTelemetry tracing.
package otel

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup installs a global tracer provider for the named service and
// returns the flush function the caller should defer.
//
// Tracing stays off unless ATELIER_OTEL_ENDPOINT is set, and
// ATELIER_OTEL_ENABLED=false forces it off even then. When tracing is
// off the returned function is a no-op and no global provider is
// registered.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	endpoint, enabled := exporterEndpoint()
	if !enabled {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return noop, fmt.Errorf("build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}

// exporterEndpoint reads the tracing switches from the environment.
func exporterEndpoint() (string, bool) {
	if strings.EqualFold(os.Getenv("ATELIER_OTEL_ENABLED"), "false") {
		return "", false
	}
	endpoint := os.Getenv("ATELIER_OTEL_ENDPOINT")
	return endpoint, endpoint != ""
}

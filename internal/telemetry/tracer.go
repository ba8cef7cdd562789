// Package telemetry sets up request tracing for the proxy: an inbound
// handler span per request and an outbound fetch span per upstream call.
// There is no OTLP exporter wiring; spans exist for propagation and local
// inspection, not for shipping to a collector.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide TracerProvider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds a TracerProvider whose resource carries serviceName
// and installs it as the global provider, so otelhttp.NewTransport/
// NewHandler calls anywhere in the process pick it up without being passed
// one explicitly.
func NewProvider(ctx context.Context, serviceName string) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}, nil
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}

// Tracer returns a named tracer, for any component that wants to start its
// own spans beyond the automatic otelhttp instrumentation.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

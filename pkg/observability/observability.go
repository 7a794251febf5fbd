// Package observability bootstraps the tracer provider for the CLI.
// Core packages only ever take a trace.Tracer; nothing in the engine
// depends on how (or whether) spans leave the process.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Init installs a tracer provider tagged with the service name and
// returns a tracer plus a shutdown func. No exporter is configured here;
// spans stay in-process unless a deployment wires one up.
func Init(serviceName, version string) (trace.Tracer, func(context.Context) error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Tracer(serviceName), tp.Shutdown
}

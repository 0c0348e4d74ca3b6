// Package telemetry exports maskit traces and metrics over OTLP.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider owns the trace and metric providers so they can be flushed on exit.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Settings describes the running maskit instance. It becomes the resource
// every span and metric is exported with.
type Settings struct {
	ServiceName string
	Version     string
	Transport   string // stdio or http
	Store       string // postgres or memory
	MaskChar    string // empty when the catalog or the default decides
	RulesFile   string
}

func (s Settings) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.ServiceName),
		semconv.ServiceVersion(s.Version),
	}
	if s.Transport != "" {
		attrs = append(attrs, attribute.String("maskit.transport", s.Transport))
	}
	if s.Store != "" {
		attrs = append(attrs, attribute.String("maskit.store", s.Store))
	}
	if s.MaskChar != "" {
		attrs = append(attrs, attribute.String("maskit.mask_char", s.MaskChar))
	}
	attrs = append(attrs, attribute.Bool("maskit.catalog", s.RulesFile != ""))
	return attrs
}

// Init registers global trace and metric providers exporting over OTLP gRPC.
// The endpoint comes from OTEL_EXPORTER_OTLP_ENDPOINT, read by the SDK.
// Spans and metrics carry mask and field names only, never field values.
func Init(ctx context.Context, s Settings) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(s.attributes()...))
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	p := &Provider{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
			sdkmetric.WithResource(res),
		),
	}

	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	// W3C trace context for the http transport; stdio has no headers to carry it.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return p, nil
}

// Shutdown flushes and shuts down the trace and metric providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down meter: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer returns the maskit tracer from the global TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(meterName)
}

// NoopTracer is used when OTel is disabled.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}

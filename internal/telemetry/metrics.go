package telemetry

import (
	"context"

	"github.com/guillermoBallester/maskit/internal/core/port"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/maskit"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	ApplyCount    metric.Int64Counter
	ApplyDuration metric.Float64Histogram
	ApplyErrors   metric.Int64Counter
	FieldsMasked  metric.Int64Counter
	ToolDuration  metric.Float64Histogram
}

var _ port.Instrumentation = (*Instruments)(nil)

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	meter := otel.Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	applyCount, _ := meter.Int64Counter("maskit.apply.count",
		metric.WithDescription("Total number of mask applications"),
	)
	applyDuration, _ := meter.Float64Histogram("maskit.apply.duration",
		metric.WithDescription("Mask application duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	applyErrors, _ := meter.Int64Counter("maskit.apply.errors",
		metric.WithDescription("Total number of failed mask applications"),
	)
	fieldsMasked, _ := meter.Int64Counter("maskit.fields.masked",
		metric.WithDescription("Total number of leaf values replaced by a mask"),
	)
	toolDuration, _ := meter.Float64Histogram("maskit.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		ApplyCount:    applyCount,
		ApplyDuration: applyDuration,
		ApplyErrors:   applyErrors,
		FieldsMasked:  fieldsMasked,
		ToolDuration:  toolDuration,
	}
}

func (i *Instruments) RecordApplyDuration(ctx context.Context, ms float64) {
	i.ApplyDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementApplyCount(ctx context.Context) {
	i.ApplyCount.Add(ctx, 1)
}

func (i *Instruments) IncrementApplyErrors(ctx context.Context) {
	i.ApplyErrors.Add(ctx, 1)
}

func (i *Instruments) AddMaskedFields(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	i.FieldsMasked.Add(ctx, int64(n))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}

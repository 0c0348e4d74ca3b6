package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordApplyDuration(ctx context.Context, ms float64)
	IncrementApplyCount(ctx context.Context)
	IncrementApplyErrors(ctx context.Context)
	AddMaskedFields(ctx context.Context, n int)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordApplyDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementApplyCount(context.Context)          {}
func (NoopInstrumentation) IncrementApplyErrors(context.Context)         {}
func (NoopInstrumentation) AddMaskedFields(context.Context, int)         {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)  {}

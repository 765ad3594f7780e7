// Package otel provides OpenTelemetry instrumentation utilities shared by the
// coordinator, the stores and the HTTP API.
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by coordinator, store and API spans.
const (
	AttrRunID       = attribute.Key("run.id")
	AttrRunDecision = attribute.Key("run.decision")
	AttrPriorState  = attribute.Key("run_state.prior")
	AttrJobID       = attribute.Key("load_job.id")
	AttrJobStatus   = attribute.Key("load_job.status")
	AttrContainer   = attribute.Key("object_store.container")
	AttrObjectCount = attribute.Key("object_store.object_count")
	AttrStep        = attribute.Key("run.step")
)

// Run steps recorded as span events, in the order a run performs them.
const (
	StepObjectsCopied      = "objects_copied"
	StepInProgressRecorded = "in_progress_recorded"
	StepIncomingCleared    = "incoming_cleared"
	StepJobSubmitted       = "load_job_submitted"
	StepSubmittedRecorded  = "submitted_recorded"
)

// stepEvent is the span event name for a completed run step
const stepEvent = "run.step"

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
// This provides graceful degradation when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// MarkStep records a completed run step as a span event. A nil span is ignored.
func MarkStep(span trace.Span, step string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.AddEvent(stepEvent, trace.WithAttributes(append([]attribute.KeyValue{AttrStep.String(step)}, attrs...)...))
}

// RecordError records err on span and marks the span failed.
// The status description stays generic; the error text only goes to the exception event.
// A cancelled context is reported as a cancellation rather than a failure of the operation.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	if errors.Is(err, context.Canceled) {
		span.SetStatus(codes.Error, "operation cancelled")
		return
	}
	span.SetStatus(codes.Error, "operation failed")
}

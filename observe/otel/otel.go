// Package otel turns observe events into OpenTelemetry spans so run and batch
// lifecycles show up next to the HTTP request spans.
package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/PipeOpsHQ/medical-coder-api/observe"
)

const instrumentationName = "github.com/PipeOpsHQ/medical-coder-api"

type Sink struct {
	tracer trace.Tracer
}

// NewSink uses a noop tracer provider when tp is nil.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{
		tracer: tp.Tracer(instrumentationName),
	}
}

// Emit records event as a span. The span is parented to any span already in
// ctx; batch units run detached so theirs start new traces.
func (s *Sink) Emit(ctx context.Context, event observe.Event) error {
	event.Normalize()
	if ctx == nil {
		ctx = context.Background()
	}

	startTime := event.Timestamp
	if event.DurationMs > 0 {
		startTime = event.Timestamp.Add(-time.Duration(event.DurationMs) * time.Millisecond)
	}
	_, span := s.tracer.Start(ctx, spanNameFor(event), trace.WithTimestamp(startTime))

	attrs := []attribute.KeyValue{
		attribute.String("medcoder.event.kind", string(event.Kind)),
	}
	if event.RunID != "" {
		attrs = append(attrs, attribute.String("medcoder.run.id", event.RunID))
	}
	if event.PatientID != "" {
		attrs = append(attrs, attribute.String("medcoder.patient.id", event.PatientID))
	}
	if event.BatchID != "" {
		attrs = append(attrs, attribute.String("medcoder.batch.id", event.BatchID))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("medcoder.event.name", event.Name))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("medcoder.status", string(event.Status)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("medcoder.message", truncate(event.Message, 1024)))
	}
	if event.DurationMs > 0 {
		attrs = append(attrs, attribute.Int64("medcoder.duration_ms", event.DurationMs))
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("medcoder.attr."+k, fmt.Sprintf("%v", v)))
	}
	span.SetAttributes(attrs...)

	switch event.Status {
	case observe.StatusFailed:
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(errors.New(event.Error))
		}
	case observe.StatusCompleted:
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(event.Timestamp))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindRun:
		return "medcoder.run"
	case observe.KindBatch:
		return "medcoder.batch"
	case observe.KindQuery:
		return "medcoder.query"
	default:
		if event.Name != "" {
			return "medcoder." + event.Name
		}
		return "medcoder.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var _ observe.Sink = (*Sink)(nil)

package otel

import (
	"context"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to a zerolog logger at debug level. It
// lets tracing run without a collector.
type LogExporter struct {
	logger zerolog.Logger
}

func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger.With().Str("component", "tracing").Logger()}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := e.logger.Debug().
			Str("span", span.Name()).
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Dur("duration", span.EndTime().Sub(span.StartTime())).
			Str("status", span.Status().Code.String())
		if parent := span.Parent(); parent.IsValid() {
			ev = ev.Str("parent_id", parent.SpanID().String())
		}
		for _, attr := range span.Attributes() {
			ev = ev.Str(string(attr.Key), attr.Value.Emit())
		}
		ev.Msg("span")
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }

// NewTracerProvider builds an SDK provider that batches spans into exp.
func NewTracerProvider(serviceName string, exp sdktrace.SpanExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(newResource(serviceName)),
	)
}

package otel

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/PipeOpsHQ/medical-coder-api/observe"
)

func newTestSink(t *testing.T) (*Sink, *tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewSink(tp), exporter, tp
}

func TestSinkEmitsSpans(t *testing.T) {
	sink, exporter, _ := newTestSink(t)

	now := time.Now()
	err := sink.Emit(context.Background(), observe.Event{
		Kind:       observe.KindRun,
		RunID:      "run-123",
		PatientID:  "p-456",
		Status:     observe.StatusCompleted,
		Timestamp:  now,
		DurationMs: 150,
	})
	if err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Name != "medcoder.run" {
		t.Errorf("expected span name 'medcoder.run', got %q", span.Name)
	}
	if got := span.EndTime.Sub(span.StartTime); got != 150*time.Millisecond {
		t.Errorf("expected 150ms span, got %v", got)
	}
	if span.Status.Code != codes.Ok {
		t.Errorf("expected ok status, got %v", span.Status)
	}

	attrMap := attrToMap(span.Attributes)
	if v, ok := attrMap["medcoder.run.id"]; !ok || v != "run-123" {
		t.Errorf("missing or wrong medcoder.run.id: %v", attrMap)
	}
	if v, ok := attrMap["medcoder.patient.id"]; !ok || v != "p-456" {
		t.Errorf("missing or wrong medcoder.patient.id: %v", attrMap)
	}
}

func TestSpanNaming(t *testing.T) {
	sink, exporter, _ := newTestSink(t)
	now := time.Now()

	tests := []struct {
		event    observe.Event
		wantName string
	}{
		{observe.Event{Kind: observe.KindBatch, Timestamp: now}, "medcoder.batch"},
		{observe.Event{Kind: observe.KindQuery, Timestamp: now}, "medcoder.query"},
		{observe.Event{Kind: observe.KindCustom, Name: "startup", Timestamp: now}, "medcoder.startup"},
		{observe.Event{Timestamp: now}, "medcoder.event"},
	}

	for _, tt := range tests {
		exporter.Reset()
		_ = sink.Emit(context.Background(), tt.event)
		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Errorf("expected 1 span for %s, got %d", tt.wantName, len(spans))
			continue
		}
		if spans[0].Name != tt.wantName {
			t.Errorf("expected span name %q, got %q", tt.wantName, spans[0].Name)
		}
	}
}

func TestSinkErrorStatus(t *testing.T) {
	sink, exporter, _ := newTestSink(t)
	_ = sink.Emit(context.Background(), observe.Event{
		Kind:      observe.KindRun,
		Status:    observe.StatusFailed,
		Error:     "something went wrong",
		Timestamp: time.Now(),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event recorded on span")
	}
}

func TestSinkParentsToContextSpan(t *testing.T) {
	sink, exporter, tp := newTestSink(t)

	ctx, parent := tp.Tracer("test").Start(context.Background(), "http.request")
	_ = sink.Emit(ctx, observe.Event{Kind: observe.KindRun, Timestamp: time.Now()})
	parent.End()

	var child sdktrace.ReadOnlySpan
	for _, s := range exporter.GetSpans().Snapshots() {
		if s.Name() == "medcoder.run" {
			child = s
		}
	}
	if child == nil {
		t.Fatalf("run span not exported")
	}
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Errorf("run span should be a child of the request span")
	}
}

func TestNilTracerProvider(t *testing.T) {
	sink := NewSink(nil)
	err := sink.Emit(context.Background(), observe.Event{
		Kind:      observe.KindRun,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Errorf("expected no error with nil provider, got: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate(strings.Repeat("a", 10), 4); got != "aaaa..." {
		t.Errorf("unexpected truncation %q", got)
	}
}

func attrToMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

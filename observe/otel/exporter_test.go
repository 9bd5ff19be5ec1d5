package otel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/PipeOpsHQ/medical-coder-api/observe"
)

func TestLogExporter_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(logger)))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	sink := NewSink(tp)
	if err := sink.Emit(context.Background(), observe.Event{
		Kind:      observe.KindRun,
		Status:    observe.StatusCompleted,
		Name:      "run.completed",
		RunID:     "run-1",
		PatientID: "p-1",
	}); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"span":"medcoder.run"`) {
		t.Fatalf("expected span name in log output, got %s", out)
	}
	if !strings.Contains(out, "run-1") {
		t.Fatalf("expected run id attribute in log output, got %s", out)
	}
}

func TestNewTracerProvider_SetsServiceName(t *testing.T) {
	tp := NewTracerProvider("", NewLogExporter(zerolog.Nop()))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	res := newResource("")
	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "medical-coder-api" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected default service name, got %v", res.Attributes())
	}
}

package observe

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes every event as a structured log line. Failures log at
// error level, everything else at info.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, event Event) error {
	_ = ctx
	event.Normalize()

	ev := s.logger.Info()
	if event.Status == StatusFailed {
		ev = s.logger.Error()
	}
	ev = ev.Str("kind", string(event.Kind)).Str("status", string(event.Status))
	if event.Name != "" {
		ev = ev.Str("event", event.Name)
	}
	if event.RunID != "" {
		ev = ev.Str("run_id", event.RunID)
	}
	if event.PatientID != "" {
		ev = ev.Str("patient_id", event.PatientID)
	}
	if event.BatchID != "" {
		ev = ev.Str("batch_id", event.BatchID)
	}
	if event.DurationMs > 0 {
		ev = ev.Int64("duration_ms", event.DurationMs)
	}
	if event.Error != "" {
		ev = ev.Str("error", event.Error)
	}
	if len(event.Attributes) > 0 {
		ev = ev.Fields(event.Attributes)
	}
	msg := event.Message
	if msg == "" {
		msg = string(event.Kind) + " " + string(event.Status)
	}
	ev.Msg(msg)
	return nil
}

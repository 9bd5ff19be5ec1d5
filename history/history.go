// Package history answers read-only lookups over persisted runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PipeOpsHQ/medical-coder-api/observe"
	"github.com/PipeOpsHQ/medical-coder-api/state"
)

var ErrBadRequest = errors.New("history: run_id or patient_id is required")

// Query selects runs by run id or, when no run id is given, by patient id.
type Query struct {
	RunID     string `json:"run_id,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
}

func (q Query) Normalize() Query {
	q.RunID = strings.TrimSpace(q.RunID)
	q.PatientID = strings.TrimSpace(q.PatientID)
	return q
}

type Service struct {
	store    state.Store
	observer observe.Sink
	logger   zerolog.Logger
}

type Option func(*Service)

func WithObserver(sink observe.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.observer = sink
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store state.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("history: run store is required")
	}
	s := &Service{store: store, observer: observe.NoopSink{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "history").Logger()
	return s, nil
}

// QueryHistory returns the run named by q.RunID, or every run of
// q.PatientID. A lookup that matches nothing fails with state.ErrNotFound.
func (s *Service) QueryHistory(ctx context.Context, q Query) ([]state.RunRecord, error) {
	q = q.Normalize()
	started := time.Now()
	records, err := s.query(ctx, q)
	event := observe.Event{
		Kind:       observe.KindQuery,
		Status:     observe.StatusCompleted,
		Name:       "history.query",
		RunID:      q.RunID,
		PatientID:  q.PatientID,
		DurationMs: time.Since(started).Milliseconds(),
		Attributes: map[string]any{"matches": len(records)},
	}
	if err != nil {
		event.Status = observe.StatusFailed
		event.Error = err.Error()
	}
	if emitErr := s.observer.Emit(ctx, event); emitErr != nil {
		s.logger.Debug().Err(emitErr).Msg("observer emit failed")
	}
	return records, err
}

func (s *Service) query(ctx context.Context, q Query) ([]state.RunRecord, error) {
	switch {
	case q.RunID != "":
		run, err := s.store.LoadRun(ctx, q.RunID)
		if err != nil {
			if errors.Is(err, state.ErrNotFound) {
				s.logger.Warn().Str("run_id", q.RunID).Msg("run not found")
			}
			return nil, err
		}
		return []state.RunRecord{run}, nil
	case q.PatientID != "":
		runs, err := s.store.ListRunsByPatient(ctx, q.PatientID)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			s.logger.Warn().Str("patient_id", q.PatientID).Msg("no runs for patient")
			return nil, fmt.Errorf("patient %s: %w", q.PatientID, state.ErrNotFound)
		}
		return runs, nil
	default:
		s.logger.Error().Msg("history query without run_id or patient_id")
		return nil, ErrBadRequest
	}
}

// ListAll returns every run. It never fails on an empty store.
func (s *Service) ListAll(ctx context.Context) ([]state.RunRecord, error) {
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []state.RunRecord{}
	}
	return runs, nil
}

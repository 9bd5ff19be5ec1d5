// Package orchestrator executes a single patient case against a freshly built
// engine and persists the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PipeOpsHQ/medical-coder-api/engine"
	"github.com/PipeOpsHQ/medical-coder-api/observe"
	"github.com/PipeOpsHQ/medical-coder-api/state"
)

const DefaultMaxLoops = 1

// Case is one patient submission.
type Case struct {
	PatientID     string `json:"patient_id"`
	Documentation string `json:"patient_documentation"`
	MaxLoops      int    `json:"max_loops,omitempty"`
}

// Normalize trims the patient id and applies the default loop count.
func (c Case) Normalize() Case {
	c.PatientID = strings.TrimSpace(c.PatientID)
	if c.MaxLoops <= 0 {
		c.MaxLoops = DefaultMaxLoops
	}
	return c
}

func (c Case) Validate() error {
	if strings.TrimSpace(c.PatientID) == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidCase)
	}
	if strings.TrimSpace(c.Documentation) == "" {
		return fmt.Errorf("%w: patient_documentation is required", ErrInvalidCase)
	}
	return nil
}

type Result struct {
	RunID  string         `json:"run_id"`
	Output map[string]any `json:"output"`
}

type Orchestrator struct {
	store          state.Store
	engines        engine.Factory
	outputLocation string
	observer       observe.Sink
	logger         zerolog.Logger
	newID          func() string
	now            func() time.Time
}

type Option func(*Orchestrator)

func WithOutputLocation(location string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(location) != "" {
			o.outputLocation = strings.TrimSpace(location)
		}
	}
}

func WithObserver(sink observe.Sink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.observer = sink
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithIDGenerator replaces uuid.NewString. Generators must never repeat.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func New(store state.Store, engines engine.Factory, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("orchestrator: run store is required")
	}
	if engines == nil {
		return nil, errors.New("orchestrator: engine factory is required")
	}
	o := &Orchestrator{
		store:          store,
		engines:        engines,
		outputLocation: "reports",
		observer:       observe.NoopSink{},
		logger:         zerolog.Nop(),
		newID:          uuid.NewString,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "orchestrator").Logger()
	return o, nil
}

// SubmitRun blocks until the engine finishes and the record is stored. The
// engine call ignores cancellation of ctx and has no timeout.
func (o *Orchestrator) SubmitRun(ctx context.Context, c Case) (Result, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	ctx = context.WithoutCancel(ctx)

	runID := o.newID()
	started := o.now()
	o.emit(ctx, observe.Event{
		Kind:       observe.KindRun,
		Status:     observe.StatusStarted,
		Name:       "run.started",
		RunID:      runID,
		PatientID:  c.PatientID,
		Message:    "run started",
		Attributes: map[string]any{"max_loops": c.MaxLoops},
	})

	output, err := o.execute(ctx, runID, c)
	if err != nil {
		o.fail(ctx, runID, c, started, err)
		return Result{}, err
	}

	if err := o.store.CreateRun(ctx, state.RunRecord{
		RunID:     runID,
		PatientID: c.PatientID,
		Output:    output,
	}); err != nil {
		if errors.Is(err, state.ErrConflict) {
			o.logger.Error().Str("run_id", runID).Msg("run id collision, id generator is broken")
		}
		err = fmt.Errorf("persist run %s: %w", runID, err)
		o.fail(ctx, runID, c, started, err)
		return Result{}, err
	}

	o.emit(ctx, observe.Event{
		Kind:       observe.KindRun,
		Status:     observe.StatusCompleted,
		Name:       "run.completed",
		RunID:      runID,
		PatientID:  c.PatientID,
		Message:    "run completed",
		DurationMs: o.now().Sub(started).Milliseconds(),
	})
	return Result{RunID: runID, Output: output}, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string, c Case) (map[string]any, error) {
	eng, err := o.engines.New(engine.Config{
		PatientID:      c.PatientID,
		MaxLoops:       c.MaxLoops,
		Documentation:  c.Documentation,
		OutputLocation: o.outputLocation,
	})
	if err != nil {
		return nil, &EngineError{RunID: runID, PatientID: c.PatientID, Stage: "construct", Err: err}
	}
	if err := eng.Run(ctx, c.Documentation); err != nil {
		return nil, &EngineError{RunID: runID, PatientID: c.PatientID, Stage: "run", Err: err}
	}
	snap, err := eng.Snapshot()
	if err != nil {
		return nil, &EngineError{RunID: runID, PatientID: c.PatientID, Stage: "snapshot", Err: err}
	}
	if snap == nil {
		snap = engine.Snapshot{}
	}
	return map[string]any(snap), nil
}

func (o *Orchestrator) fail(ctx context.Context, runID string, c Case, started time.Time, err error) {
	o.emit(ctx, observe.Event{
		Kind:       observe.KindRun,
		Status:     observe.StatusFailed,
		Name:       "run.failed",
		RunID:      runID,
		PatientID:  c.PatientID,
		Message:    "run failed",
		Error:      err.Error(),
		DurationMs: o.now().Sub(started).Milliseconds(),
	})
}

func (o *Orchestrator) emit(ctx context.Context, event observe.Event) {
	if err := o.observer.Emit(ctx, event); err != nil {
		o.logger.Debug().Err(err).Str("event", event.Name).Msg("observer emit failed")
	}
}

// Package engine defines the boundary between run orchestration and the
// clinical reasoning engine. An engine is built per run, executed once and
// then asked for a serializable snapshot of its result.
package engine

import (
	"context"
	"errors"
)

var ErrNotRun = errors.New("engine: snapshot requested before a successful run")

// Config carries the per-run construction parameters.
type Config struct {
	PatientID      string
	MaxLoops       int
	Documentation  string
	OutputLocation string
}

// Snapshot is the engine result document. It is persisted as-is.
type Snapshot map[string]any

type Engine interface {
	Run(ctx context.Context, task string) error
	Snapshot() (Snapshot, error)
}

type Factory interface {
	New(cfg Config) (Engine, error)
}

type FactoryFunc func(cfg Config) (Engine, error)

func (f FactoryFunc) New(cfg Config) (Engine, error) {
	return f(cfg)
}

// Package enginetest provides a scripted engine for exercising run
// orchestration without a model provider.
package enginetest

import (
	"context"
	"errors"
	"sync"

	"github.com/PipeOpsHQ/medical-coder-api/engine"
)

var ErrScripted = errors.New("enginetest: scripted failure")

// Factory builds scripted engines. The zero value succeeds for every case.
type Factory struct {
	// FailRun reports whether the engine built for cfg should fail in Run.
	FailRun func(cfg engine.Config) bool
	// FailSnapshot reports whether Snapshot should fail after a good run.
	FailSnapshot func(cfg engine.Config) bool
	// Gate, when set, blocks every Run until it is closed.
	Gate <-chan struct{}

	mu      sync.Mutex
	configs []engine.Config
	runs    int
}

// FailOnDocumentation fails runs whose documentation matches one of docs.
func FailOnDocumentation(docs ...string) func(engine.Config) bool {
	set := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		set[d] = struct{}{}
	}
	return func(cfg engine.Config) bool {
		_, ok := set[cfg.Documentation]
		return ok
	}
}

func (f *Factory) New(cfg engine.Config) (engine.Engine, error) {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()
	return &Engine{factory: f, cfg: cfg}, nil
}

// Configs returns every config passed to New, in call order.
func (f *Factory) Configs() []engine.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Config(nil), f.configs...)
}

// Runs counts completed Run calls, failed ones included.
func (f *Factory) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type Engine struct {
	factory *Factory
	cfg     engine.Config
	task    string
	ran     bool
}

func (e *Engine) Run(ctx context.Context, task string) error {
	if e.factory.Gate != nil {
		select {
		case <-e.factory.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	e.factory.mu.Lock()
	e.factory.runs++
	e.factory.mu.Unlock()

	if e.factory.FailRun != nil && e.factory.FailRun(e.cfg) {
		return ErrScripted
	}
	e.task = task
	e.ran = true
	return nil
}

func (e *Engine) Snapshot() (engine.Snapshot, error) {
	if !e.ran {
		return nil, engine.ErrNotRun
	}
	if e.factory.FailSnapshot != nil && e.factory.FailSnapshot(e.cfg) {
		return nil, ErrScripted
	}
	return engine.Snapshot{
		"patient_id":            e.cfg.PatientID,
		"max_loops":             e.cfg.MaxLoops,
		"patient_documentation": e.cfg.Documentation,
		"output_folder_path":    e.cfg.OutputLocation,
		"task":                  e.task,
		"final_output":          "coded: " + e.task,
	}, nil
}

var _ engine.Factory = (*Factory)(nil)

package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrEngine matches every *EngineError via errors.Is.
	ErrEngine = errors.New("orchestrator: engine failed")

	ErrInvalidCase = errors.New("orchestrator: invalid case")
)

// EngineError reports a failed engine construction, execution or snapshot.
// Nothing is persisted for the run.
type EngineError struct {
	RunID     string
	PatientID string
	Stage     string
	Err       error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s failed for run %s: %v", e.Stage, e.RunID, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool { return target == ErrEngine }

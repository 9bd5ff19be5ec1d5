package state

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("state: not found")
	ErrConflict = errors.New("state: conflict")
)

// Store persists run records. Records are written once and never updated.
// Implementations must be safe for concurrent use; each call acquires and
// releases its own connection or transaction.
type Store interface {
	// CreateRun inserts run and returns ErrConflict if run.RunID exists.
	CreateRun(ctx context.Context, run RunRecord) error
	LoadRun(ctx context.Context, runID string) (RunRecord, error)
	ListRunsByPatient(ctx context.Context, patientID string) ([]RunRecord, error)
	ListRuns(ctx context.Context) ([]RunRecord, error)

	Close() error
}

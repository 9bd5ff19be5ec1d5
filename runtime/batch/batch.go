// Package batch fans a list of patient cases out to background runs.
//
// Submission is a fire-and-forget acknowledgment: SubmitBatch returns as
// soon as every case is scheduled, so the results carried by the Ack are a
// snapshot taken before the runs had a chance to finish and are normally
// empty. Outcomes are discovered through the run history or, for the local
// dispatcher, through Status.
package batch

import (
	"context"
	"errors"

	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
)

var ErrClosed = errors.New("batch: dispatcher closed")

// Runner executes one case. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	SubmitRun(ctx context.Context, c orchestrator.Case) (orchestrator.Result, error)
}

// Ack acknowledges a scheduled batch.
type Ack struct {
	BatchID string
	Size    int
	Results []orchestrator.Result
}

type Dispatcher interface {
	SubmitBatch(ctx context.Context, cases []orchestrator.Case) (Ack, error)
	Close(ctx context.Context) error
}

// Status is the collector view of a recent batch.
type Status struct {
	BatchID   string                `json:"batch_id"`
	Submitted int                   `json:"submitted"`
	Results   []orchestrator.Result `json:"results"`
}

// StatusReporter is implemented by dispatchers that keep batch results in
// process.
type StatusReporter interface {
	Status(batchID string) (Status, bool)
}

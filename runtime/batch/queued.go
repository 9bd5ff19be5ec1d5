package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PipeOpsHQ/medical-coder-api/observe"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/queue"
)

// QueueDispatcher hands each case to the queue for a Worker to run. Its
// acknowledgment never carries results.
type QueueDispatcher struct {
	queue    queue.Queue
	observer observe.Sink
	logger   zerolog.Logger
	newID    func() string
	now      func() time.Time
}

func NewQueueDispatcher(q queue.Queue, opts ...Option) (*QueueDispatcher, error) {
	if q == nil {
		return nil, errors.New("batch: queue is required")
	}
	o := options{
		observer: observe.NoopSink{},
		logger:   zerolog.Nop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &QueueDispatcher{
		queue:    q,
		observer: o.observer,
		logger:   o.logger.With().Str("component", "batch").Logger(),
		newID:    o.newID,
		now:      time.Now,
	}, nil
}

// SubmitBatch enqueues every case. When an enqueue fails the cases before
// it stay queued.
func (d *QueueDispatcher) SubmitBatch(ctx context.Context, cases []orchestrator.Case) (Ack, error) {
	batchID := d.newID()
	now := d.now().UTC()
	for i, c := range cases {
		c = c.Normalize()
		if _, err := d.queue.Enqueue(ctx, queue.Task{
			BatchID:       batchID,
			Index:         i,
			PatientID:     c.PatientID,
			Documentation: c.Documentation,
			MaxLoops:      c.MaxLoops,
			EnqueuedAt:    now,
		}); err != nil {
			d.logger.Error().Err(err).Str("batch_id", batchID).Int("index", i).Msg("enqueue failed")
			return Ack{}, fmt.Errorf("enqueue case %d of batch %s: %w", i, batchID, err)
		}
	}
	if err := d.observer.Emit(ctx, observe.Event{
		Kind:       observe.KindBatch,
		Status:     observe.StatusStarted,
		Name:       "batch.enqueued",
		BatchID:    batchID,
		Attributes: map[string]any{"size": len(cases)},
	}); err != nil {
		d.logger.Debug().Err(err).Msg("observer emit failed")
	}
	d.logger.Info().Str("batch_id", batchID).Int("size", len(cases)).Msg("batch enqueued")
	return Ack{BatchID: batchID, Size: len(cases), Results: []orchestrator.Result{}}, nil
}

// Close is a no-op; the queue belongs to the caller.
func (d *QueueDispatcher) Close(context.Context) error { return nil }

var _ Dispatcher = (*QueueDispatcher)(nil)

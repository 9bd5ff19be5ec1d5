package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PipeOpsHQ/medical-coder-api/observe"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/queue"
)

type WorkerConfig struct {
	WorkerID string
	// Capacity is the number of tasks claimed per poll. They run one after
	// the other.
	Capacity int
}

// Worker drains queued batch cases through a Runner. A failed run is logged
// and acknowledged; it is never retried.
type Worker struct {
	cfg      WorkerConfig
	queue    queue.Queue
	runner   Runner
	observer observe.Sink
	policy   WorkerPolicy
	logger   zerolog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewWorker(cfg WorkerConfig, q queue.Queue, runner Runner, policy WorkerPolicy, opts ...Option) (*Worker, error) {
	if q == nil {
		return nil, errors.New("batch: queue is required")
	}
	if runner == nil {
		return nil, errors.New("batch: runner is required")
	}
	if strings.TrimSpace(cfg.WorkerID) == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	o := options{observer: observe.NoopSink{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Worker{
		cfg:      cfg,
		queue:    q,
		runner:   runner,
		observer: o.observer,
		policy:   NormalizeWorkerPolicy(policy),
		logger:   o.logger.With().Str("component", "worker").Str("worker_id", cfg.WorkerID).Logger(),
	}, nil
}

func (w *Worker) ID() string { return w.cfg.WorkerID }

// Start polls the queue until ctx is canceled or Stop is called. It returns
// the context error that ended the loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.started = true
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	defer func() {
		cancel()
		w.mu.Lock()
		w.started = false
		w.cancel = nil
		if w.done == done {
			close(done)
			w.done = nil
		}
		w.mu.Unlock()
	}()

	heartbeat := time.NewTicker(w.policy.HeartbeatInterval)
	defer heartbeat.Stop()

	w.logger.Info().Int("capacity", w.cfg.Capacity).Msg("worker started")
	for {
		select {
		case <-runCtx.Done():
			w.logger.Info().Msg("worker stopped")
			return runCtx.Err()
		case <-heartbeat.C:
			w.heartbeat(runCtx)
		default:
			deliveries, err := w.queue.Claim(runCtx, w.cfg.WorkerID, w.policy.ClaimBlock, w.cfg.Capacity)
			if err != nil && runCtx.Err() == nil {
				w.logger.Warn().Err(err).Msg("claim failed")
			}
			if err != nil || len(deliveries) == 0 {
				select {
				case <-runCtx.Done():
				case <-time.After(w.policy.PollInterval):
				}
				continue
			}
			for _, delivery := range deliveries {
				w.handleDelivery(runCtx, delivery)
			}
		}
	}
}

func (w *Worker) Stop(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) handleDelivery(ctx context.Context, delivery queue.Delivery) {
	task := delivery.Task
	log := w.logger.With().
		Str("batch_id", task.BatchID).
		Int("index", task.Index).
		Str("patient_id", task.PatientID).
		Str("message_id", delivery.ID).
		Logger()

	// A claimed case runs to completion even when the worker is stopping.
	res, err := w.runner.SubmitRun(context.WithoutCancel(ctx), orchestrator.Case{
		PatientID:     task.PatientID,
		Documentation: task.Documentation,
		MaxLoops:      task.MaxLoops,
	})
	if err != nil {
		log.Error().Err(err).Msg("batch run failed")
	} else {
		log.Info().Str("run_id", res.RunID).Msg("batch run completed")
	}
	if err := w.queue.Ack(context.WithoutCancel(ctx), w.cfg.WorkerID, delivery.ID); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}

// heartbeat reports liveness together with the queue depth the worker sees.
func (w *Worker) heartbeat(ctx context.Context) {
	attrs := map[string]any{"worker_id": w.cfg.WorkerID}
	stats, err := w.queue.Stats(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("queue stats failed")
	} else {
		attrs["stream_length"] = stats.StreamLength
		attrs["pending"] = stats.Pending
		attrs["dlq_length"] = stats.DLQLength
		if stats.DLQLength > 0 {
			w.logger.Warn().Int64("dlq_length", stats.DLQLength).Msg("dead-lettered batch tasks present")
		}
	}
	w.emit(ctx, observe.Event{
		Kind:       observe.KindCustom,
		Status:     observe.StatusCompleted,
		Name:       "worker.heartbeat",
		Attributes: attrs,
	})
}

func (w *Worker) emit(ctx context.Context, event observe.Event) {
	if err := w.observer.Emit(ctx, event); err != nil {
		w.logger.Debug().Err(err).Str("event", event.Name).Msg("observer emit failed")
	}
}

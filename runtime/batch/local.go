package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/PipeOpsHQ/medical-coder-api/observe"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
)

const DefaultConcurrency = 8

// LocalDispatcher runs every case of a batch on its own goroutine inside
// the current process. At most Concurrency runs execute at once; the rest
// wait on the semaphore without holding up SubmitBatch.
type LocalDispatcher struct {
	runner   Runner
	sem      *semaphore.Weighted
	registry *Registry
	observer observe.Sink
	logger   zerolog.Logger
	newID    func() string

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*options)

type options struct {
	concurrency int64
	history     int
	observer    observe.Sink
	logger      zerolog.Logger
	newID       func() string
}

func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = int64(n)
		}
	}
}

// WithHistory bounds how many batches Status can still report on.
func WithHistory(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.history = n
		}
	}
}

func WithObserver(sink observe.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.observer = sink
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithBatchIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func NewLocalDispatcher(runner Runner, opts ...Option) (*LocalDispatcher, error) {
	if runner == nil {
		return nil, errors.New("batch: runner is required")
	}
	o := options{
		concurrency: DefaultConcurrency,
		history:     DefaultHistory,
		observer:    observe.NoopSink{},
		logger:      zerolog.Nop(),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &LocalDispatcher{
		runner:   runner,
		sem:      semaphore.NewWeighted(o.concurrency),
		registry: NewRegistry(o.history),
		observer: o.observer,
		logger:   o.logger.With().Str("component", "batch").Logger(),
		newID:    o.newID,
	}, nil
}

// SubmitBatch schedules every case and returns without waiting for any of
// them. The runs are detached from ctx.
func (d *LocalDispatcher) SubmitBatch(ctx context.Context, cases []orchestrator.Case) (Ack, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Ack{}, ErrClosed
	}
	d.wg.Add(len(cases))
	d.mu.Unlock()

	batchID := d.newID()
	collector := NewCollector()
	d.registry.Put(batchID, len(cases), collector)

	runCtx := context.WithoutCancel(ctx)
	d.emit(runCtx, observe.Event{
		Kind:       observe.KindBatch,
		Status:     observe.StatusStarted,
		Name:       "batch.started",
		BatchID:    batchID,
		Message:    "batch scheduled",
		Attributes: map[string]any{"size": len(cases)},
	})
	d.logger.Info().
		Str("batch_id", batchID).
		Int("size", len(cases)).
		Int("tracked_batches", d.registry.Len()).
		Msg("batch scheduled")

	t := &tally{remaining: int64(len(cases)), started: time.Now()}
	if len(cases) == 0 {
		d.finish(runCtx, batchID, t, collector)
	}
	for i, c := range cases {
		go d.runUnit(runCtx, batchID, i, c, collector, t)
	}
	return Ack{BatchID: batchID, Size: len(cases), Results: collector.Snapshot()}, nil
}

type tally struct {
	remaining int64
	failed    int64
	started   time.Time
}

func (d *LocalDispatcher) runUnit(ctx context.Context, batchID string, index int, c orchestrator.Case, collector *Collector, t *tally) {
	defer d.wg.Done()
	defer func() {
		if atomic.AddInt64(&t.remaining, -1) == 0 {
			d.finish(ctx, batchID, t, collector)
		}
	}()

	// ctx is never canceled so Acquire only returns once a slot is free.
	if err := d.sem.Acquire(ctx, 1); err != nil {
		atomic.AddInt64(&t.failed, 1)
		return
	}
	defer d.sem.Release(1)

	res, err := d.runner.SubmitRun(ctx, c)
	if err != nil {
		atomic.AddInt64(&t.failed, 1)
		d.logger.Error().
			Err(err).
			Str("batch_id", batchID).
			Int("index", index).
			Str("patient_id", c.PatientID).
			Msg("batch run failed")
		return
	}
	collector.Append(res)
}

func (d *LocalDispatcher) finish(ctx context.Context, batchID string, t *tally, collector *Collector) {
	failed := atomic.LoadInt64(&t.failed)
	status := observe.StatusCompleted
	if failed > 0 {
		status = observe.StatusFailed
	}
	d.emit(ctx, observe.Event{
		Kind:       observe.KindBatch,
		Status:     status,
		Name:       "batch.completed",
		BatchID:    batchID,
		Message:    "batch finished",
		DurationMs: time.Since(t.started).Milliseconds(),
		Attributes: map[string]any{"failed": failed, "succeeded": int64(collector.Len())},
	})
}

// Status reports the results collected so far for a recent batch.
func (d *LocalDispatcher) Status(batchID string) (Status, bool) {
	return d.registry.Lookup(batchID)
}

// Close rejects new batches and waits for in-flight runs or ctx.
func (d *LocalDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *LocalDispatcher) emit(ctx context.Context, event observe.Event) {
	if err := d.observer.Emit(ctx, event); err != nil {
		d.logger.Debug().Err(err).Str("event", event.Name).Msg("observer emit failed")
	}
}

var (
	_ Dispatcher     = (*LocalDispatcher)(nil)
	_ StatusReporter = (*LocalDispatcher)(nil)
)

package hybrid

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PipeOpsHQ/medical-coder-api/state"
)

// HybridStore writes through to a durable store and keeps a best-effort cache
// for run id lookups. Cache failures are logged and never surface to callers.
type HybridStore struct {
	durable state.Store
	cache   state.Store
	logger  zerolog.Logger
}

type Option func(*HybridStore)

func WithLogger(logger zerolog.Logger) Option {
	return func(h *HybridStore) {
		h.logger = logger
	}
}

func New(durable state.Store, cache state.Store, opts ...Option) (*HybridStore, error) {
	if durable == nil {
		return nil, fmt.Errorf("durable store is required")
	}
	h := &HybridStore{
		durable: durable,
		cache:   cache,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("component", "hybrid-store").Logger()
	return h, nil
}

func (h *HybridStore) CreateRun(ctx context.Context, run state.RunRecord) error {
	if err := h.durable.CreateRun(ctx, run); err != nil {
		return err
	}
	if h.cache != nil {
		if err := h.cache.CreateRun(ctx, run); err != nil {
			h.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("cache CreateRun failed")
		}
	}
	return nil
}

func (h *HybridStore) LoadRun(ctx context.Context, runID string) (state.RunRecord, error) {
	if h.cache != nil {
		run, err := h.cache.LoadRun(ctx, runID)
		if err == nil {
			return run, nil
		}
		if !errors.Is(err, state.ErrNotFound) {
			h.logger.Warn().Err(err).Str("run_id", runID).Msg("cache LoadRun failed")
		}
	}

	run, err := h.durable.LoadRun(ctx, runID)
	if err != nil {
		return state.RunRecord{}, err
	}
	if h.cache != nil {
		if err := h.cache.CreateRun(ctx, run); err != nil && !errors.Is(err, state.ErrConflict) {
			h.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("cache backfill failed")
		}
	}
	return run, nil
}

// Listings always come from the durable store; the cache may have expired
// or missed entries.
func (h *HybridStore) ListRunsByPatient(ctx context.Context, patientID string) ([]state.RunRecord, error) {
	return h.durable.ListRunsByPatient(ctx, patientID)
}

func (h *HybridStore) ListRuns(ctx context.Context) ([]state.RunRecord, error) {
	return h.durable.ListRuns(ctx)
}

func (h *HybridStore) Close() error {
	var firstErr error
	if h.cache != nil {
		if err := h.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.durable != nil {
		if err := h.durable.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ state.Store = (*HybridStore)(nil)

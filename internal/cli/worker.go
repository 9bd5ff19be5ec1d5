package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PipeOpsHQ/medical-coder-api/runtime/batch"
)

func newWorkerCmd(a *app) *cobra.Command {
	var workerID string
	var capacity int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run queued batch cases from redis streams",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workerID != "" {
				a.cfg.Batch.WorkerID = workerID
			}
			if capacity > 0 {
				a.cfg.Batch.Capacity = capacity
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runWorker(ctx)
		},
	}
	cmd.Flags().StringVar(&workerID, "id", "", "consumer name, overrides batch.worker_id")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "tasks claimed per poll, overrides batch.capacity")
	return cmd
}

func (a *app) runWorker(ctx context.Context) error {
	svc, err := a.buildServices(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg("shutdown error")
		}
	}()

	q, err := a.openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	w, err := batch.NewWorker(
		batch.WorkerConfig{WorkerID: a.cfg.Batch.WorkerID, Capacity: a.cfg.Batch.Capacity},
		q,
		svc.orchestrator,
		batch.WorkerPolicy{
			PollInterval: a.cfg.Batch.PollInterval,
			ClaimBlock:   a.cfg.Batch.ClaimBlock,
		},
		batch.WithObserver(svc.observer),
		batch.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

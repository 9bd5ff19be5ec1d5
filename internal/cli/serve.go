package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PipeOpsHQ/medical-coder-api/api"
	"github.com/PipeOpsHQ/medical-coder-api/config"
	"github.com/PipeOpsHQ/medical-coder-api/history"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/batch"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run, batch and history HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	svc, err := a.buildServices(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg("shutdown error")
		}
	}()

	dispatcher, err := a.buildDispatcher(svc)
	if err != nil {
		return err
	}

	hist, err := history.New(svc.store, history.WithObserver(svc.observer), history.WithLogger(a.logger))
	if err != nil {
		return err
	}
	server, err := api.NewServer(api.Config{
		Addr:            a.cfg.Server.Addr,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		Runs:            svc.orchestrator,
		Batches:         dispatcher,
		History:         hist,
		Logger:          a.logger,
		TracerProvider:  svc.tracer,
	})
	if err != nil {
		return err
	}

	a.logger.Info().
		Str("store", a.cfg.Store.Backend).
		Str("batch_mode", a.cfg.Batch.Mode).
		Str("provider", a.cfg.Engine.Provider).
		Msg("starting medical coder api")
	serveErr := server.ListenAndServe(ctx)

	// HTTP is down; let scheduled batch runs finish before the store closes.
	drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		a.logger.Warn().Err(err).Msg("batch runs still in flight at shutdown")
	}
	return serveErr
}

func (a *app) buildDispatcher(svc *services) (batch.Dispatcher, error) {
	switch a.cfg.Batch.Mode {
	case config.BatchModeQueue:
		q, err := a.openQueue()
		if err != nil {
			return nil, err
		}
		svc.onClose(func(context.Context) error { return q.Close() })
		return batch.NewQueueDispatcher(q, batch.WithObserver(svc.observer), batch.WithLogger(a.logger))
	case config.BatchModeLocal, "":
		return batch.NewLocalDispatcher(svc.orchestrator,
			batch.WithConcurrency(a.cfg.Batch.Concurrency),
			batch.WithHistory(a.cfg.Batch.History),
			batch.WithObserver(svc.observer),
			batch.WithLogger(a.logger),
		)
	}
	return nil, fmt.Errorf("unsupported batch.mode %q", a.cfg.Batch.Mode)
}

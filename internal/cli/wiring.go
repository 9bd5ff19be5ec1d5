package cli

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/PipeOpsHQ/medical-coder-api/artifacts"
	"github.com/PipeOpsHQ/medical-coder-api/artifacts/local"
	"github.com/PipeOpsHQ/medical-coder-api/artifacts/minio"
	"github.com/PipeOpsHQ/medical-coder-api/config"
	"github.com/PipeOpsHQ/medical-coder-api/engine"
	"github.com/PipeOpsHQ/medical-coder-api/engine/coder"
	"github.com/PipeOpsHQ/medical-coder-api/observe"
	otelsink "github.com/PipeOpsHQ/medical-coder-api/observe/otel"
	"github.com/PipeOpsHQ/medical-coder-api/prompt"
	providerfactory "github.com/PipeOpsHQ/medical-coder-api/providers/factory"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/queue/redisstreams"
	"github.com/PipeOpsHQ/medical-coder-api/state"
	storefactory "github.com/PipeOpsHQ/medical-coder-api/state/factory"
)

// services is the set of long-lived components shared by serve, worker and
// submit. Close releases them in reverse order of construction.
type services struct {
	store        state.Store
	observer     observe.Sink
	tracer       trace.TracerProvider
	orchestrator *orchestrator.Orchestrator
	closers      []func(context.Context) error
}

func (s *services) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *services) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// buildServices opens the run store, the observer chain and, when withEngine
// is set, the engine and orchestrator.
func (a *app) buildServices(ctx context.Context, withEngine bool) (*services, error) {
	svc := &services{}
	fail := func(err error) (*services, error) {
		_ = svc.Close(context.Background())
		return nil, err
	}

	store, err := storefactory.FromConfig(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return fail(fmt.Errorf("open run store: %w", err))
	}
	svc.store = store
	svc.onClose(func(context.Context) error { return store.Close() })

	svc.observer, svc.tracer = a.buildObserver(svc)
	if !withEngine {
		return svc, nil
	}

	engines, err := a.buildEngineFactory(ctx)
	if err != nil {
		return fail(err)
	}
	orch, err := orchestrator.New(store, engines,
		orchestrator.WithOutputLocation(a.cfg.Engine.OutputLocation),
		orchestrator.WithObserver(svc.observer),
		orchestrator.WithLogger(a.logger),
	)
	if err != nil {
		return fail(err)
	}
	svc.orchestrator = orch
	return svc, nil
}

func (a *app) buildObserver(svc *services) (observe.Sink, trace.TracerProvider) {
	sinks := []observe.Sink{observe.NewLogSink(a.logger.With().Str("component", "events").Logger())}
	var tp trace.TracerProvider
	if a.cfg.Telemetry.Tracing {
		sdk := otelsink.NewTracerProvider(a.cfg.Telemetry.ServiceName, otelsink.NewLogExporter(a.logger))
		svc.onClose(sdk.Shutdown)
		sinks = append(sinks, otelsink.NewSink(sdk))
		tp = sdk
	}
	async := observe.NewAsyncSink(observe.NewMultiSink(sinks...), 1024)
	svc.onClose(async.Close)
	return async, tp
}

func (a *app) buildArtifacts(ctx context.Context) (artifacts.Store, error) {
	cfg := a.cfg.Artifacts
	switch cfg.Backend {
	case config.ArtifactsMinio:
		store, err := minio.Open(ctx, minio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("open minio artifacts: %w", err)
		}
		return store, nil
	case config.ArtifactsLocal, "":
		store, err := local.New(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported artifacts.backend %q", cfg.Backend)
}

func (a *app) buildEngineFactory(ctx context.Context) (engine.Factory, error) {
	provider, err := providerfactory.FromConfig(ctx, a.cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("build model provider: %w", err)
	}
	reports, err := a.buildArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	prompts := prompt.Builtins()
	n, err := prompt.LoadDir(prompts, a.cfg.Engine.PromptDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if n > 0 {
		a.logger.Info().Int("count", n).Str("dir", a.cfg.Engine.PromptDir).Msg("loaded prompt overrides")
	}
	engines, err := coder.NewFactory(provider, reports,
		coder.WithPrompts(prompts),
		coder.WithModel(a.cfg.Engine.Model),
		coder.WithSystemPrompt(a.cfg.Engine.SystemPrompt),
		coder.WithMaxOutputTokens(a.cfg.Engine.MaxOutputTokens),
	)
	if err != nil {
		return nil, err
	}
	return engines, nil
}

func (a *app) openQueue() (*redisstreams.Queue, error) {
	redis := a.cfg.Store.Redis
	q, err := redisstreams.New(redis.Addr,
		redisstreams.WithPassword(redis.Password),
		redisstreams.WithDB(redis.DB),
		redisstreams.WithPrefix(a.cfg.Batch.QueuePrefix),
		redisstreams.WithGroup(a.cfg.Batch.Group),
	)
	if err != nil {
		return nil, fmt.Errorf("open batch queue: %w", err)
	}
	return q, nil
}

// Package api exposes run submission and history over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/PipeOpsHQ/medical-coder-api/history"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/batch"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
	"github.com/PipeOpsHQ/medical-coder-api/state"
)

const maxBodyBytes = 10 << 20

// RunSubmitter runs one case synchronously.
type RunSubmitter interface {
	SubmitRun(ctx context.Context, c orchestrator.Case) (orchestrator.Result, error)
}

type HistoryService interface {
	QueryHistory(ctx context.Context, q history.Query) ([]state.RunRecord, error)
	ListAll(ctx context.Context) ([]state.RunRecord, error)
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	Runs            RunSubmitter
	Batches         batch.Dispatcher
	History         HistoryService
	Logger          zerolog.Logger
	// TracerProvider instruments every request. The global provider is used
	// when nil.
	TracerProvider trace.TracerProvider
}

type Server struct {
	cfg       Config
	logger    zerolog.Logger
	validator *caseValidator
	mux       *http.ServeMux
	handler   http.Handler
	http      *http.Server
	once      sync.Once
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Runs == nil {
		return nil, errors.New("api: run submitter is required")
	}
	if cfg.Batches == nil {
		return nil, errors.New("api: batch dispatcher is required")
	}
	if cfg.History == nil {
		return nil, errors.New("api: history service is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "0.0.0.0:8000"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	validator, err := newCaseValidator()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger.With().Str("component", "api").Logger(),
		validator: validator,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()

	otelOpts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if cfg.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	s.handler = otelhttp.NewHandler(s.logRequests(s.mux), "medcoder-api", otelOpts...)
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.handler
}

// ListenAndServe serves until ctx is canceled, then shuts the listener down
// and waits for open requests up to the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		err := s.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown signal received, stopping http server")
		if err := s.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("http shutdown error")
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	var outErr error
	s.once.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		outErr = s.http.Shutdown(shutdownCtx)
		if outErr == nil {
			s.logger.Info().Msg("http server stopped")
		}
	})
	return outErr
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /run/{$}", s.handleRun)
	s.mux.HandleFunc("POST /run", s.handleRun)
	s.mux.HandleFunc("POST /run/batch/{$}", s.handleRunBatch)
	s.mux.HandleFunc("POST /run/batch", s.handleRunBatch)
	s.mux.HandleFunc("GET /run/batch/{batchID}", s.handleBatchStatus)
	s.mux.HandleFunc("GET /history/{$}", s.handleHistory)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("GET /runs/{$}", s.handleListRuns)
	s.mux.HandleFunc("GET /runs", s.handleListRuns)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

// Package coder implements the medical coding engine on top of an LLM
// provider. The first pass extracts a code set from the documentation and
// every later pass audits the previous answer.
package coder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PipeOpsHQ/medical-coder-api/artifacts"
	"github.com/PipeOpsHQ/medical-coder-api/engine"
	"github.com/PipeOpsHQ/medical-coder-api/llm"
	"github.com/PipeOpsHQ/medical-coder-api/prompt"
	"github.com/PipeOpsHQ/medical-coder-api/types"
)

type Factory struct {
	provider        llm.Provider
	artifacts       artifacts.Store
	model           string
	prompts         *prompt.Registry
	systemPrompt    string
	maxOutputTokens int
	now             func() time.Time
}

type Option func(*Factory)

func WithModel(model string) Option {
	return func(f *Factory) { f.model = strings.TrimSpace(model) }
}

// WithPrompts replaces the built-in prompt templates.
func WithPrompts(r *prompt.Registry) Option {
	return func(f *Factory) {
		if r != nil {
			f.prompts = r
		}
	}
}

// WithSystemPrompt overrides the coder.system template with literal text.
func WithSystemPrompt(text string) Option {
	return func(f *Factory) {
		if strings.TrimSpace(text) != "" {
			f.systemPrompt = text
		}
	}
}

func WithMaxOutputTokens(max int) Option {
	return func(f *Factory) {
		if max > 0 {
			f.maxOutputTokens = max
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFactory(provider llm.Provider, store artifacts.Store, opts ...Option) (*Factory, error) {
	if provider == nil {
		return nil, errors.New("coder: provider is required")
	}
	if store == nil {
		return nil, errors.New("coder: artifacts store is required")
	}
	f := &Factory{
		provider:        provider,
		artifacts:       store,
		prompts:         prompt.Builtins(),
		maxOutputTokens: 2048,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.systemPrompt == "" {
		system, err := f.prompts.Execute(prompt.CoderSystem, nil)
		if err != nil {
			return nil, fmt.Errorf("coder: %w", err)
		}
		f.systemPrompt = system
	}
	return f, nil
}

func (f *Factory) New(cfg engine.Config) (engine.Engine, error) {
	if strings.TrimSpace(cfg.PatientID) == "" {
		return nil, errors.New("coder: patient id is required")
	}
	if cfg.MaxLoops < 1 {
		cfg.MaxLoops = 1
	}
	if strings.TrimSpace(cfg.OutputLocation) == "" {
		cfg.OutputLocation = "reports"
	}
	return &Engine{factory: f, cfg: cfg}, nil
}

type loopOutput struct {
	Loop   int    `json:"loop"`
	Output string `json:"output"`
}

// Engine is single-use: Run may be called once.
type Engine struct {
	factory *Factory
	cfg     engine.Config

	mu       sync.Mutex
	ran      bool
	loops    []loopOutput
	final    string
	location string
	usage    types.Usage
	started  time.Time
	finished time.Time
}

func (e *Engine) Run(ctx context.Context, task string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ran {
		return errors.New("coder: engine already ran")
	}
	if strings.TrimSpace(task) == "" {
		return errors.New("coder: task is required")
	}

	f := e.factory
	e.started = f.now().UTC()
	first, err := f.extractionPrompt(e.cfg.PatientID, task)
	if err != nil {
		return fmt.Errorf("coder: %w", err)
	}
	messages := []types.Message{{Role: types.RoleUser, Content: first}}
	for pass := 1; pass <= e.cfg.MaxLoops; pass++ {
		if pass > 1 {
			review, err := f.reviewPrompt(pass, e.cfg.MaxLoops)
			if err != nil {
				return fmt.Errorf("coder: %w", err)
			}
			messages = append(messages, types.Message{Role: types.RoleUser, Content: review})
		}
		resp, err := f.provider.Generate(ctx, types.Request{
			Model:           f.model,
			SystemPrompt:    f.systemPrompt,
			Messages:        messages,
			MaxOutputTokens: f.maxOutputTokens,
		})
		if err != nil {
			return fmt.Errorf("coder: pass %d: %w", pass, err)
		}
		content := strings.TrimSpace(resp.Message.Content)
		if content == "" {
			return fmt.Errorf("coder: pass %d: %w", pass, llm.ErrEmptyResponse)
		}
		e.usage.Add(resp.Usage)
		e.loops = append(e.loops, loopOutput{Loop: pass, Output: content})
		messages = append(messages, types.Message{Role: types.RoleAssistant, Content: content})
		e.final = content
	}
	e.finished = f.now().UTC()

	location, err := e.writeReport(ctx)
	if err != nil {
		return err
	}
	e.location = location
	e.ran = true
	return nil
}

func (e *Engine) writeReport(ctx context.Context) (string, error) {
	report := map[string]any{
		"patient_id":   e.cfg.PatientID,
		"max_loops":    e.cfg.MaxLoops,
		"loops":        e.loops,
		"final_output": e.final,
		"started_at":   e.started,
		"finished_at":  e.finished,
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("coder: encode report: %w", err)
	}
	name := fmt.Sprintf("%d-%s.json", e.finished.UnixNano(), uuid.NewString())
	key := path.Join(e.cfg.OutputLocation, patientSegment(e.cfg.PatientID), name)
	location, err := e.factory.artifacts.Put(ctx, key, raw, "application/json")
	if err != nil {
		return "", fmt.Errorf("coder: write report: %w", err)
	}
	return location, nil
}

// patientSegment escapes a patient id into exactly one path segment below
// the output location.
func patientSegment(patientID string) string {
	seg := url.PathEscape(strings.TrimSpace(patientID))
	if strings.Trim(seg, ".") == "" {
		seg = strings.ReplaceAll(seg, ".", "%2E")
	}
	return seg
}

func (e *Engine) Snapshot() (engine.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ran {
		return nil, engine.ErrNotRun
	}

	loops := make([]any, 0, len(e.loops))
	for _, l := range e.loops {
		loops = append(loops, map[string]any{"loop": l.Loop, "output": l.Output})
	}
	return engine.Snapshot{
		"patient_id":            e.cfg.PatientID,
		"max_loops":             e.cfg.MaxLoops,
		"patient_documentation": e.cfg.Documentation,
		"output_folder_path":    e.cfg.OutputLocation,
		"loops":                 loops,
		"final_output":          e.final,
		"report_location":       e.location,
		"provider":              e.factory.provider.Name(),
		"model":                 e.factory.model,
		"usage": map[string]any{
			"input_tokens":  e.usage.InputTokens,
			"output_tokens": e.usage.OutputTokens,
			"total_tokens":  e.usage.TotalTokens,
		},
		"started_at":  e.started.Format(time.RFC3339Nano),
		"finished_at": e.finished.Format(time.RFC3339Nano),
	}, nil
}

var _ engine.Factory = (*Factory)(nil)

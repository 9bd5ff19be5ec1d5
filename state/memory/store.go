// Package memory keeps run records in process memory. Records are stored as
// encoded JSON so callers never share maps with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PipeOpsHQ/medical-coder-api/state"
)

type entry struct {
	runID     string
	patientID string
	output    []byte
	createdAt time.Time
	seq       int64
}

type Store struct {
	mu        sync.RWMutex
	runs      map[string]*entry
	byPatient map[string][]*entry
	seq       int64
}

func New() *Store {
	return &Store{
		runs:      map[string]*entry{},
		byPatient: map[string][]*entry{},
	}
}

func (s *Store) CreateRun(ctx context.Context, run state.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := run.Validate(); err != nil {
		return err
	}
	raw, err := state.EncodeOutput(run.Output)
	if err != nil {
		return err
	}
	created := time.Now().UTC()
	if run.CreatedAt != nil {
		created = run.CreatedAt.UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.RunID]; exists {
		return state.ErrConflict
	}
	s.seq++
	e := &entry{
		runID:     run.RunID,
		patientID: run.PatientID,
		output:    raw,
		createdAt: created,
		seq:       s.seq,
	}
	s.runs[run.RunID] = e
	s.byPatient[run.PatientID] = append(s.byPatient[run.PatientID], e)
	return nil
}

func (s *Store) LoadRun(ctx context.Context, runID string) (state.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return state.RunRecord{}, err
	}
	s.mu.RLock()
	e, ok := s.runs[strings.TrimSpace(runID)]
	s.mu.RUnlock()
	if !ok {
		return state.RunRecord{}, state.ErrNotFound
	}
	return e.record()
}

func (s *Store) ListRunsByPatient(ctx context.Context, patientID string) ([]state.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := append([]*entry(nil), s.byPatient[patientID]...)
	s.mu.RUnlock()
	return toRecords(entries)
}

func (s *Store) ListRuns(ctx context.Context) ([]state.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.runs))
	for _, e := range s.runs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	return toRecords(entries)
}

func (s *Store) Close() error { return nil }

func (e *entry) record() (state.RunRecord, error) {
	output, err := state.DecodeOutput(e.output)
	if err != nil {
		return state.RunRecord{}, err
	}
	created := e.createdAt
	return state.RunRecord{
		RunID:     e.runID,
		PatientID: e.patientID,
		Output:    output,
		CreatedAt: &created,
	}, nil
}

func toRecords(entries []*entry) ([]state.RunRecord, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]state.RunRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := e.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ state.Store = (*Store)(nil)

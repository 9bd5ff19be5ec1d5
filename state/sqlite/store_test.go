package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/PipeOpsHQ/medical-coder-api/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSQLiteStore_CreateLoadRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	output := map[string]any{
		"patient_id": "p-1",
		"codes":      []any{"I10", "E11.9"},
		"loops":      float64(2),
	}
	if err := s.CreateRun(ctx, state.RunRecord{RunID: "run-1", PatientID: "p-1", Output: output, CreatedAt: &now}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := s.LoadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if got.RunID != "run-1" || got.PatientID != "p-1" {
		t.Fatalf("unexpected run identity: %#v", got)
	}
	if diff := cmp.Diff(output, got.Output); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at: %#v", got.CreatedAt)
	}
}

func TestSQLiteStore_CreateRunConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := state.RunRecord{RunID: "run-dup", PatientID: "p-1", Output: map[string]any{"v": "first"}}
	if err := s.CreateRun(ctx, rec); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	rec.Output = map[string]any{"v": "second"}
	if err := s.CreateRun(ctx, rec); !errors.Is(err, state.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate run_id, got %v", err)
	}

	got, err := s.LoadRun(ctx, "run-dup")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if got.Output["v"] != "first" {
		t.Fatalf("record was mutated by duplicate create: %#v", got.Output)
	}
}

func TestSQLiteStore_ListByPatientAndAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, patient := range []string{"a", "b", "a", "a"} {
		if err := s.CreateRun(ctx, state.RunRecord{RunID: fmt.Sprintf("run-%d", i), PatientID: patient}); err != nil {
			t.Fatalf("CreateRun %d failed: %v", i, err)
		}
	}

	runs, err := s.ListRunsByPatient(ctx, "a")
	if err != nil {
		t.Fatalf("ListRunsByPatient failed: %v", err)
	}
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.RunID)
	}
	if diff := cmp.Diff([]string{"run-0", "run-2", "run-3"}, ids); diff != "" {
		t.Fatalf("unexpected patient runs (-want +got):\n%s", diff)
	}

	none, err := s.ListRunsByPatient(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListRunsByPatient failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no runs, got %d", len(none))
	}

	all, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(all))
	}
}

func TestSQLiteStore_ConcurrentCreates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.CreateRun(ctx, state.RunRecord{RunID: fmt.Sprintf("run-%d", i), PatientID: "p"})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent CreateRun failed: %v", err)
		}
	}

	all, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 20 {
		t.Fatalf("expected 20 runs, got %d", len(all))
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LoadRun(context.Background(), "missing"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing run, got %v", err)
	}
}

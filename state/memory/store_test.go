package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/PipeOpsHQ/medical-coder-api/state"
)

func TestMemoryStore_CreateLoad(t *testing.T) {
	s := New()
	ctx := context.Background()

	output := map[string]any{"codes": []any{"E11.9"}}
	if err := s.CreateRun(ctx, state.RunRecord{RunID: "run-1", PatientID: "p-1", Output: output}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	output["codes"] = "mutated"

	got, err := s.LoadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if got.PatientID != "p-1" || got.CreatedAt == nil {
		t.Fatalf("unexpected record: %#v", got)
	}
	codes, ok := got.Output["codes"].([]any)
	if !ok || len(codes) != 1 || codes[0] != "E11.9" {
		t.Fatalf("stored output was shared with caller: %#v", got.Output)
	}
}

func TestMemoryStore_ConflictAndNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := state.RunRecord{RunID: "dup", PatientID: "p"}
	if err := s.CreateRun(ctx, rec); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := s.CreateRun(ctx, rec); !errors.Is(err, state.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.LoadRun(ctx, "missing"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ConcurrentWriters(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.CreateRun(ctx, state.RunRecord{
				RunID:     fmt.Sprintf("run-%d", i),
				PatientID: fmt.Sprintf("p-%d", i%3),
			})
		}(i)
	}
	wg.Wait()

	all, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 50 {
		t.Fatalf("expected 50 runs, got %d", len(all))
	}
	byPatient, err := s.ListRunsByPatient(ctx, "p-0")
	if err != nil {
		t.Fatalf("ListRunsByPatient failed: %v", err)
	}
	if len(byPatient) != 17 {
		t.Fatalf("expected 17 runs for p-0, got %d", len(byPatient))
	}
}

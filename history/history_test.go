package history

import (
	"context"
	"errors"
	"testing"

	"github.com/PipeOpsHQ/medical-coder-api/state"
	"github.com/PipeOpsHQ/medical-coder-api/state/memory"
)

func seeded(t *testing.T) *Service {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, r := range []state.RunRecord{
		{RunID: "r1", PatientID: "p1", Output: map[string]any{"n": 1}},
		{RunID: "r2", PatientID: "p1", Output: map[string]any{"n": 2}},
		{RunID: "r3", PatientID: "p2", Output: map[string]any{"n": 3}},
	} {
		if err := store.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}
	svc, err := New(store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return svc
}

func TestQueryHistory_ByRunID(t *testing.T) {
	svc := seeded(t)
	runs, err := svc.QueryHistory(context.Background(), Query{RunID: " r3 "})
	if err != nil {
		t.Fatalf("QueryHistory failed: %v", err)
	}
	if len(runs) != 1 || runs[0].PatientID != "p2" {
		t.Fatalf("unexpected runs %#v", runs)
	}
}

func TestQueryHistory_RunIDWins(t *testing.T) {
	svc := seeded(t)
	runs, err := svc.QueryHistory(context.Background(), Query{RunID: "r3", PatientID: "p1"})
	if err != nil {
		t.Fatalf("QueryHistory failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "r3" {
		t.Fatalf("expected run id lookup to win, got %#v", runs)
	}

	if _, err := svc.QueryHistory(context.Background(), Query{RunID: "missing", PatientID: "p1"}); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryHistory_ByPatient(t *testing.T) {
	svc := seeded(t)
	runs, err := svc.QueryHistory(context.Background(), Query{PatientID: "p1"})
	if err != nil {
		t.Fatalf("QueryHistory failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID == runs[1].RunID {
		t.Fatalf("expected two distinct runs, got %#v", runs)
	}
}

func TestQueryHistory_Misses(t *testing.T) {
	svc := seeded(t)
	for _, q := range []Query{{RunID: "does-not-exist"}, {PatientID: "nobody"}} {
		if _, err := svc.QueryHistory(context.Background(), q); !errors.Is(err, state.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %+v, got %v", q, err)
		}
	}
}

func TestQueryHistory_RequiresFilter(t *testing.T) {
	svc := seeded(t)
	for _, q := range []Query{{}, {RunID: "  ", PatientID: "\t"}} {
		if _, err := svc.QueryHistory(context.Background(), q); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("expected ErrBadRequest for %+v, got %v", q, err)
		}
	}
}

func TestListAll(t *testing.T) {
	svc := seeded(t)
	runs, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}

	empty, err := New(memory.New())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	runs, err = empty.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", runs)
	}
}

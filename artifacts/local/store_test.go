package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/PipeOpsHQ/medical-coder-api/artifacts"
)

func TestStore_PutWritesFile(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	loc, err := s.Put(context.Background(), "reports/p-1/1.json", []byte(`{"ok":true}`), "application/json")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if want := filepath.Join(root, "reports", "p-1", "1.json"); loc != want {
		t.Fatalf("unexpected location %q, want %q", loc, want)
	}
	raw, err := os.ReadFile(loc)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("unexpected content %q", raw)
	}
}

func TestStore_PutRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Put(context.Background(), "../outside.json", []byte("x"), ""); !errors.Is(err, artifacts.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStore_PutHonorsCanceledContext(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "a.json", []byte("x"), ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

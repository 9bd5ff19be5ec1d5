package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PipeOpsHQ/medical-coder-api/artifacts"
)

// Store writes artifacts below a root directory on the local filesystem.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifacts dir: %w", err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_ = contentType
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleaned, err := artifacts.CleanKey(key)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	// Write to a sibling temp file first so readers never see a partial report.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return target, nil
}

var _ artifacts.Store = (*Store)(nil)

package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/PipeOpsHQ/medical-coder-api/config"
	"github.com/PipeOpsHQ/medical-coder-api/state/hybrid"
	"github.com/PipeOpsHQ/medical-coder-api/state/memory"
	redisstore "github.com/PipeOpsHQ/medical-coder-api/state/redis"
	sqlitestore "github.com/PipeOpsHQ/medical-coder-api/state/sqlite"
)

func baseConfig(t *testing.T) config.StoreConfig {
	t.Helper()
	cfg := config.Default().Store
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "medical_coder.db")
	return cfg
}

func TestFromConfig_SQLite(t *testing.T) {
	s, err := FromConfig(context.Background(), baseConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("FromConfig sqlite failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*sqlitestore.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", s)
	}
}

func TestFromConfig_Memory(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendMemory
	s, err := FromConfig(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromConfig memory failed: %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}

func TestFromConfig_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig(t)
	cfg.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()

	s, err := FromConfig(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromConfig redis failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*redisstore.Store); !ok {
		t.Fatalf("expected redis store, got %T", s)
	}
}

func TestFromConfig_HybridFallsBackWhenRedisUnavailable(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendHybrid
	cfg.Redis.Addr = "127.0.0.1:1"

	s, err := FromConfig(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromConfig hybrid failed unexpectedly: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*hybrid.HybridStore); !ok {
		t.Fatalf("expected hybrid store, got %T", s)
	}
}

func TestFromConfig_InvalidBackend(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = "nope"
	if _, err := FromConfig(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for invalid backend")
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"server.addr", cfg.Server.Addr, "0.0.0.0:8000"},
		{"store.backend", cfg.Store.Backend, BackendSQLite},
		{"store.sqlite.path", cfg.Store.SQLite.Path, "./medical_coder.db"},
		{"engine.output_location", cfg.Engine.OutputLocation, "reports"},
		{"engine.prompt_dir", cfg.Engine.PromptDir, ""},
		{"log.file", cfg.Log.File, "medical_coder_api.log"},
		{"log.max_size_mb", cfg.Log.MaxSizeMB, 1},
		{"log.max_age_days", cfg.Log.MaxAgeDays, 7},
		{"batch.mode", cfg.Batch.Mode, BatchModeLocal},
		{"batch.concurrency", cfg.Batch.Concurrency, 8},
		{"store.redis.ttl", cfg.Store.Redis.TTL, time.Duration(0)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medcoder.yaml")
	err := os.WriteFile(path, []byte(`
server:
  addr: 127.0.0.1:9000
store:
  backend: Redis
  redis:
    ttl: 90s
batch:
  concurrency: 3
`), 0o600)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Store.Backend != BackendRedis {
		t.Fatalf("expected normalized redis backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Redis.TTL != 90*time.Second {
		t.Fatalf("unexpected ttl %v", cfg.Store.Redis.TTL)
	}
	if cfg.Batch.Concurrency != 3 {
		t.Fatalf("unexpected concurrency %d", cfg.Batch.Concurrency)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medcoder.json")
	if err := os.WriteFile(path, []byte(`{"store":{"backend":"memory"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MEDCODER_STORE_BACKEND", "postgres")
	t.Setenv("MEDCODER_STORE_POSTGRES_URL", "postgres://medcoder@localhost/medcoder")
	t.Setenv("MEDCODER_ENGINE_PROVIDER", "Gemini")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Postgres.URL != "postgres://medcoder@localhost/medcoder" {
		t.Fatalf("unexpected postgres url %q", cfg.Store.Postgres.URL)
	}
	if cfg.Engine.Provider != "gemini" {
		t.Fatalf("expected normalized provider, got %q", cfg.Engine.Provider)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.Store.Backend = "mongo" }},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"minio without endpoint", func(c *Config) { c.Artifacts.Backend = ArtifactsMinio }},
		{"zero concurrency", func(c *Config) { c.Batch.Concurrency = 0 }},
		{"unknown batch mode", func(c *Config) { c.Batch.Mode = "cluster" }},
		{"negative ttl", func(c *Config) { c.Store.Redis.TTL = -time.Second }},
		{"empty output location", func(c *Config) { c.Engine.OutputLocation = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if err := Validate(Default()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if err := Validate(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil config, got %v", err)
	}
}

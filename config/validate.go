package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Validate returns the first invalid or inconsistent value found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Store.SQLite.Path == "" {
			return fmt.Errorf("%w: store.sqlite.path is required", ErrInvalidConfig)
		}
	case BackendPostgres:
		if cfg.Store.Postgres.URL == "" {
			return fmt.Errorf("%w: store.postgres.url is required", ErrInvalidConfig)
		}
	case BackendRedis:
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr is required", ErrInvalidConfig)
		}
	case BackendHybrid:
		if cfg.Store.SQLite.Path == "" || cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: hybrid store needs store.sqlite.path and store.redis.addr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported store.backend %q (use memory, sqlite, postgres, redis, or hybrid)", ErrInvalidConfig, cfg.Store.Backend)
	}
	if cfg.Store.Redis.TTL < 0 {
		return fmt.Errorf("%w: store.redis.ttl must be >= 0", ErrInvalidConfig)
	}

	switch cfg.Artifacts.Backend {
	case ArtifactsLocal:
	case ArtifactsMinio:
		if cfg.Artifacts.Minio.Endpoint == "" || cfg.Artifacts.Minio.Bucket == "" {
			return fmt.Errorf("%w: artifacts.minio needs endpoint and bucket", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported artifacts.backend %q", ErrInvalidConfig, cfg.Artifacts.Backend)
	}

	if cfg.Engine.OutputLocation == "" {
		return fmt.Errorf("%w: engine.output_location is required", ErrInvalidConfig)
	}

	switch cfg.Batch.Mode {
	case BatchModeLocal, BatchModeQueue:
	default:
		return fmt.Errorf("%w: unsupported batch.mode %q (use local or queue)", ErrInvalidConfig, cfg.Batch.Mode)
	}
	if cfg.Batch.Concurrency < 1 {
		return fmt.Errorf("%w: batch.concurrency must be >= 1, got %d", ErrInvalidConfig, cfg.Batch.Concurrency)
	}
	if cfg.Batch.Capacity < 1 {
		return fmt.Errorf("%w: batch.capacity must be >= 1, got %d", ErrInvalidConfig, cfg.Batch.Capacity)
	}

	if cfg.Log.MaxSizeMB < 1 {
		return fmt.Errorf("%w: log.max_size_mb must be >= 1", ErrInvalidConfig)
	}
	return nil
}

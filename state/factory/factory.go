package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PipeOpsHQ/medical-coder-api/config"
	"github.com/PipeOpsHQ/medical-coder-api/state"
	"github.com/PipeOpsHQ/medical-coder-api/state/hybrid"
	"github.com/PipeOpsHQ/medical-coder-api/state/memory"
	pgstore "github.com/PipeOpsHQ/medical-coder-api/state/postgres"
	redisstore "github.com/PipeOpsHQ/medical-coder-api/state/redis"
	sqlitestore "github.com/PipeOpsHQ/medical-coder-api/state/sqlite"
)

// FromConfig opens the run store selected by cfg.Backend. A hybrid store
// degrades to the durable sqlite store when redis cannot be reached.
func FromConfig(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (state.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendSQLite, "":
		return newSQLite(cfg.SQLite)

	case config.BackendPostgres:
		return pgstore.Open(ctx, pgstore.Config{
			URL:             cfg.Postgres.URL,
			PingTimeout:     cfg.Postgres.PingTimeout,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})

	case config.BackendRedis:
		return newRedis(cfg.Redis)

	case config.BackendHybrid:
		durable, err := newSQLite(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		cache, err := newRedis(cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis cache unavailable, using sqlite only")
			return hybrid.New(durable, nil, hybrid.WithLogger(logger))
		}
		return hybrid.New(durable, cache, hybrid.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unsupported store backend %q (use memory, sqlite, postgres, redis, or hybrid)", cfg.Backend)
	}
}

func newSQLite(cfg config.SQLiteConfig) (*sqlitestore.Store, error) {
	return sqlitestore.New(cfg.Path,
		sqlitestore.WithBusyTimeout(cfg.BusyTimeout),
		sqlitestore.WithWAL(cfg.WAL),
	)
}

func newRedis(cfg config.RedisConfig) (*redisstore.Store, error) {
	return redisstore.New(cfg.Addr,
		redisstore.WithPassword(cfg.Password),
		redisstore.WithDB(cfg.DB),
		redisstore.WithPrefix(cfg.Prefix),
		redisstore.WithTTL(cfg.TTL),
	)
}

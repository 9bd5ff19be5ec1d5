package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendHybrid   = "hybrid"

	ArtifactsLocal = "local"
	ArtifactsMinio = "minio"

	BatchModeLocal = "local"
	BatchModeQueue = "queue"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.sqlite.path", "./medical_coder.db")
	v.SetDefault("store.sqlite.busy_timeout", 5*time.Second)
	v.SetDefault("store.sqlite.wal", true)
	v.SetDefault("store.postgres.url", "")
	v.SetDefault("store.postgres.ping_timeout", 2*time.Second)
	v.SetDefault("store.postgres.max_open_conns", 10)
	v.SetDefault("store.postgres.max_idle_conns", 5)
	v.SetDefault("store.postgres.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("store.redis.addr", "127.0.0.1:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "medcoder")
	v.SetDefault("store.redis.ttl", time.Duration(0))

	v.SetDefault("engine.provider", "openai")
	v.SetDefault("engine.model", "")
	v.SetDefault("engine.base_url", "")
	v.SetDefault("engine.api_key", "")
	v.SetDefault("engine.output_location", "reports")
	v.SetDefault("engine.system_prompt", "")
	v.SetDefault("engine.prompt_dir", "")
	v.SetDefault("engine.max_output_tokens", 2048)
	v.SetDefault("engine.request_timeout", time.Duration(0))

	v.SetDefault("artifacts.backend", ArtifactsLocal)
	v.SetDefault("artifacts.dir", ".")
	v.SetDefault("artifacts.minio.endpoint", "")
	v.SetDefault("artifacts.minio.access_key", "")
	v.SetDefault("artifacts.minio.secret_key", "")
	v.SetDefault("artifacts.minio.bucket", "medical-coder-reports")
	v.SetDefault("artifacts.minio.use_ssl", false)
	v.SetDefault("artifacts.minio.region", "")

	v.SetDefault("batch.mode", BatchModeLocal)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.history", 256)
	v.SetDefault("batch.queue_prefix", "medcoder")
	v.SetDefault("batch.group", "medcoder-workers")
	v.SetDefault("batch.worker_id", "")
	v.SetDefault("batch.capacity", 4)
	v.SetDefault("batch.claim_block", 2*time.Second)
	v.SetDefault("batch.poll_interval", 500*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "medical_coder_api.log")
	v.SetDefault("log.max_size_mb", 1)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.max_backups", 0)

	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.service_name", "medical-coder-api")
}

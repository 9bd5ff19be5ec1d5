package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/PipeOpsHQ/medical-coder-api/state"
)

//go:embed schema.sql
var schemaSQL string

const selectColumns = `SELECT run_id, patient_id, output, created_at FROM runs`

type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) withDefaults() Config {
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
	if c.MaxOpenConns < 1 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("postgres url is required")
	}
	return nil
}

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateRun(ctx context.Context, run state.RunRecord) error {
	if err := run.Validate(); err != nil {
		return err
	}
	if run.CreatedAt == nil {
		now := time.Now().UTC()
		run.CreatedAt = &now
	}
	outputRaw, err := state.EncodeOutput(run.Output)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO runs (run_id, patient_id, output, created_at)
VALUES ($1, $2, $3::jsonb, $4)`
	if _, err := s.db.ExecContext(ctx, q, run.RunID, run.PatientID, string(outputRaw), run.CreatedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return state.ErrConflict
		}
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(ctx context.Context, runID string) (state.RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return state.RunRecord{}, fmt.Errorf("run_id is required")
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, selectColumns+" WHERE run_id = $1", runID))
	if err != nil {
		return state.RunRecord{}, handleNotFound(err)
	}
	return run, nil
}

func (s *Store) ListRunsByPatient(ctx context.Context, patientID string) ([]state.RunRecord, error) {
	return s.list(ctx, selectColumns+" WHERE patient_id = $1 ORDER BY id ASC", strings.TrimSpace(patientID))
}

func (s *Store) ListRuns(ctx context.Context) ([]state.RunRecord, error) {
	return s.list(ctx, selectColumns+" ORDER BY id ASC")
}

func (s *Store) list(ctx context.Context, q string, args ...any) ([]state.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]state.RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (state.RunRecord, error) {
	var (
		run       state.RunRecord
		outputRaw []byte
		created   time.Time
	)
	if err := scanner.Scan(&run.RunID, &run.PatientID, &outputRaw, &created); err != nil {
		return state.RunRecord{}, err
	}
	output, err := state.DecodeOutput(outputRaw)
	if err != nil {
		return state.RunRecord{}, err
	}
	created = created.UTC()
	run.Output = output
	run.CreatedAt = &created
	return run, nil
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return state.ErrNotFound
	}
	return fmt.Errorf("failed to load run: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ state.Store = (*Store)(nil)

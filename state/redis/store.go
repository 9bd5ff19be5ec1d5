package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/PipeOpsHQ/medical-coder-api/state"
)

const defaultPrefix = "medcoder"

// Store keeps each run as a JSON string key and maintains two sorted-set
// indexes (per patient and global) scored by a monotonically increasing
// sequence so listings preserve insertion order.
type Store struct {
	client   *goredis.Client
	ttl      time.Duration
	prefix   string
	addr     string
	db       int
	password string
}

type Option func(*Store)

func WithPassword(password string) Option {
	return func(s *Store) {
		s.password = password
	}
}

func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

// WithTTL expires run keys after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithClient(client *goredis.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

func New(addr string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	s := &Store{
		prefix: defaultPrefix,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{
			Addr:     s.addr,
			Password: s.password,
			DB:       s.db,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return s, nil
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

	raw, err := encodeRun(run, outputRaw)
	if err != nil {
		return err
	}

	ttlMs := int64(0)
	if s.ttl > 0 {
		ttlMs = s.ttl.Milliseconds()
	}
	keys := []string{s.runKey(run.RunID), s.patientIndexKey(run.PatientID), s.globalIndexKey(), s.seqKey()}
	created, err := createRunScript.Run(ctx, s.client, keys, raw, run.RunID, ttlMs).Int()
	if err != nil {
		return fmt.Errorf("failed to save run in redis: %w", err)
	}
	if created == 0 {
		return state.ErrConflict
	}
	return nil
}

// createRunScript writes the record and both index entries as one unit.
// Nothing is written when the id exists or any step fails; the sequence may
// advance, which only leaves a gap in the scores.
//
// KEYS: run, patient index, global index, sequence. ARGV: record, run id,
// ttl in milliseconds (0 = none).
var createRunScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local seq = redis.call('INCR', KEYS[4])
local res = redis.pcall('ZADD', KEYS[2], seq, ARGV[2])
if type(res) == 'table' and res.err then
	return res
end
res = redis.pcall('ZADD', KEYS[3], seq, ARGV[2])
if type(res) == 'table' and res.err then
	redis.call('ZREM', KEYS[2], ARGV[2])
	return res
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
	redis.call('PEXPIRE', KEYS[2], ttl)
	redis.call('PEXPIRE', KEYS[3], ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func (s *Store) LoadRun(ctx context.Context, runID string) (state.RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return state.RunRecord{}, fmt.Errorf("run_id is required")
	}

	raw, err := s.client.Get(ctx, s.runKey(runID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return state.RunRecord{}, state.ErrNotFound
		}
		return state.RunRecord{}, fmt.Errorf("failed to load run from redis: %w", err)
	}
	return decodeRun(raw)
}

func (s *Store) ListRunsByPatient(ctx context.Context, patientID string) ([]state.RunRecord, error) {
	return s.listIndex(ctx, s.patientIndexKey(strings.TrimSpace(patientID)))
}

func (s *Store) ListRuns(ctx context.Context) ([]state.RunRecord, error) {
	return s.listIndex(ctx, s.globalIndexKey())
}

func (s *Store) listIndex(ctx context.Context, indexKey string) ([]state.RunRecord, error) {
	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run ids: %w", err)
	}
	if len(ids) == 0 {
		return []state.RunRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	loaded, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget runs from redis: %w", err)
	}

	out := make([]state.RunRecord, 0, len(loaded))
	stale := make([]any, 0)
	for i, value := range loaded {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		run, err := decodeRun(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}

	// Expired run keys leave their ids behind in the index.
	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, indexKey, stale...).Err()
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) runKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix, runID)
}

func (s *Store) patientIndexKey(patientID string) string {
	return fmt.Sprintf("%s:patient:%s:runs", s.prefix, patientID)
}

func (s *Store) globalIndexKey() string {
	return s.prefix + ":runs"
}

func (s *Store) seqKey() string {
	return s.prefix + ":runs:seq"
}

var _ state.Store = (*Store)(nil)

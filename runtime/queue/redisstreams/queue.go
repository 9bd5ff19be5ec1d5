package redisstreams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/PipeOpsHQ/medical-coder-api/runtime/queue"
)

const (
	defaultPrefix = "medcoder:queue"
	defaultGroup  = "workers"
)

type Queue struct {
	client      *goredis.Client
	addr        string
	password    string
	db          int
	prefix      string
	group       string
	caseStream  string
	dlqStream   string
	ownedClient bool
}

type Option func(*Queue)

// WithClient shares an existing client. Close leaves a shared client open.
func WithClient(client *goredis.Client) Option {
	return func(q *Queue) {
		if client != nil {
			q.client = client
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(q *Queue) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

func WithGroup(group string) Option {
	return func(q *Queue) {
		group = strings.TrimSpace(group)
		if group != "" {
			q.group = group
		}
	}
}

func WithPassword(password string) Option {
	return func(q *Queue) { q.password = password }
}

func WithDB(db int) Option {
	return func(q *Queue) { q.db = db }
}

func New(addr string, opts ...Option) (*Queue, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	q := &Queue{
		addr:   addr,
		prefix: defaultPrefix,
		group:  defaultGroup,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.client == nil {
		q.client = goredis.NewClient(&goredis.Options{Addr: q.addr, Password: q.password, DB: q.db})
		q.ownedClient = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.client.Ping(ctx).Err(); err != nil {
		q.closeOwned()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	q.caseStream = q.prefix + ":cases"
	q.dlqStream = q.prefix + ":cases:dlq"
	if err := q.ensureGroup(ctx); err != nil {
		q.closeOwned()
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context) error {
	res := q.client.XGroupCreateMkStream(ctx, q.caseStream, q.group, "0")
	if err := res.Err(); err != nil && !strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP") {
		return fmt.Errorf("failed to ensure redis stream group: %w", err)
	}
	return nil
}

func (q *Queue) Enqueue(ctx context.Context, task queue.Task) (string, error) {
	if strings.TrimSpace(task.BatchID) == "" {
		return "", fmt.Errorf("batch id is required")
	}
	if strings.TrimSpace(task.PatientID) == "" {
		return "", fmt.Errorf("patient id is required")
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue task: %w", err)
	}
	id, err := q.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.caseStream,
		Values: map[string]any{"payload": string(payload)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return id, nil
}

// Claim reads up to count new tasks for consumer. A non-positive block
// returns immediately when the stream is empty. Undecodable payloads are
// moved to the dead-letter stream.
func (q *Queue) Claim(ctx context.Context, consumer string, block time.Duration, count int) ([]queue.Delivery, error) {
	if strings.TrimSpace(consumer) == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if count <= 0 {
		count = 1
	}
	if block <= 0 {
		block = -1
	}
	res, err := q.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.caseStream, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return []queue.Delivery{}, nil
		}
		return nil, fmt.Errorf("failed to claim tasks: %w", err)
	}
	out := make([]queue.Delivery, 0, count)
	for _, stream := range res {
		for _, msg := range stream.Messages {
			payload, _ := msg.Values["payload"].(string)
			var task queue.Task
			if payload == "" || json.Unmarshal([]byte(payload), &task) != nil {
				_, _ = q.DeadLetter(ctx, msg.ID, payload, "undecodable payload")
				continue
			}
			out = append(out, queue.Delivery{
				ID:       msg.ID,
				Stream:   stream.Stream,
				Task:     task,
				Received: time.Now().UTC(),
			})
		}
	}
	return out, nil
}

func (q *Queue) Ack(ctx context.Context, consumer string, messageIDs ...string) error {
	_ = consumer
	args := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			args = append(args, id)
		}
	}
	if len(args) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.caseStream, q.group, args...).Err(); err != nil {
		return fmt.Errorf("failed to ack queue message: %w", err)
	}
	_ = q.client.XDel(ctx, q.caseStream, args...).Err()
	return nil
}

func (q *Queue) DeadLetter(ctx context.Context, messageID, payload, reason string) (string, error) {
	id, err := q.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.dlqStream,
		Values: map[string]any{
			"payload":   payload,
			"source_id": messageID,
			"reason":    reason,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to move task to dlq: %w", err)
	}
	if err := q.Ack(ctx, "", messageID); err != nil {
		return id, err
	}
	return id, nil
}

func (q *Queue) Stats(ctx context.Context) (queue.Stats, error) {
	caseLen, err := q.client.XLen(ctx, q.caseStream).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return queue.Stats{}, fmt.Errorf("failed to read queue length: %w", err)
	}
	dlqLen, err := q.client.XLen(ctx, q.dlqStream).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return queue.Stats{}, fmt.Errorf("failed to read dlq length: %w", err)
	}
	pending := int64(0)
	if res, err := q.client.XPending(ctx, q.caseStream, q.group).Result(); err == nil {
		pending = res.Count
	}
	return queue.Stats{StreamLength: caseLen, DLQLength: dlqLen, Pending: pending}, nil
}

func (q *Queue) Close() error {
	if q == nil || q.client == nil || !q.ownedClient {
		return nil
	}
	return q.client.Close()
}

func (q *Queue) closeOwned() {
	if q.ownedClient && q.client != nil {
		_ = q.client.Close()
	}
}

var _ queue.Queue = (*Queue)(nil)

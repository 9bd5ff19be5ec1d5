package redisstreams

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/PipeOpsHQ/medical-coder-api/runtime/queue"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := New(mr.Addr(), WithPrefix("medcoder:qtest"), WithGroup("test"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestQueue_EnqueueClaimAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, queue.Task{BatchID: "b1", Index: 0, PatientID: "p1", Documentation: "doc", MaxLoops: 2})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected id")
	}

	deliveries, err := q.Claim(ctx, "worker-1", 0, 5)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery got %d", len(deliveries))
	}
	task := deliveries[0].Task
	if task.BatchID != "b1" || task.PatientID != "p1" || task.MaxLoops != 2 || task.EnqueuedAt.IsZero() {
		t.Fatalf("unexpected task: %+v", task)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Pending != 1 {
		t.Fatalf("expected 1 pending, got %+v", stats)
	}

	if err := q.Ack(ctx, "worker-1", deliveries[0].ID); err != nil {
		t.Fatalf("ack failed: %v", err)
	}
	stats, err = q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.StreamLength != 0 || stats.Pending != 0 {
		t.Fatalf("expected drained stream, got %+v", stats)
	}
}

func TestQueue_EachTaskDeliveredOnce(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, queue.Task{BatchID: "b1", Index: i, PatientID: "p", Documentation: "d"}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	first, err := q.Claim(ctx, "worker-1", 0, 2)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	second, err := q.Claim(ctx, "worker-2", 0, 2)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("expected 2+1 deliveries, got %d+%d", len(first), len(second))
	}
	empty, err := q.Claim(ctx, "worker-3", 0, 2)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no more deliveries, got %d", len(empty))
	}
}

func TestQueue_UndecodablePayloadIsDeadLettered(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	if err := client.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.caseStream,
		Values: map[string]any{"payload": "{not json"},
	}).Err(); err != nil {
		t.Fatalf("xadd failed: %v", err)
	}

	deliveries, err := q.Claim(ctx, "worker-1", 0, 1)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(deliveries) != 0 {
		t.Fatalf("expected bad payload to be skipped")
	}
	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.DLQLength != 1 || stats.Pending != 0 {
		t.Fatalf("expected payload in dlq, got %+v", stats)
	}
}

func TestQueue_EnqueueValidates(t *testing.T) {
	q, _ := newTestQueue(t)
	if _, err := q.Enqueue(context.Background(), queue.Task{PatientID: "p"}); err == nil {
		t.Fatalf("expected error without batch id")
	}
	if _, err := q.Enqueue(context.Background(), queue.Task{BatchID: "b"}); err == nil {
		t.Fatalf("expected error without patient id")
	}
}

func TestQueue_ClaimBlocksUntilTimeout(t *testing.T) {
	q, _ := newTestQueue(t)
	start := time.Now()
	deliveries, err := q.Claim(context.Background(), "worker-1", 50*time.Millisecond, 1)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(deliveries) != 0 {
		t.Fatalf("expected no deliveries")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("claim blocked too long")
	}
}

func TestQueue_SharedClientStaysOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	q, err := New(mr.Addr(), WithClient(client))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("shared client should remain usable: %v", err)
	}
}

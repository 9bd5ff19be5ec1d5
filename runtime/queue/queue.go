// Package queue hands batch cases from the API process to background
// workers.
package queue

import (
	"context"
	"time"
)

// Task is one case of a submitted batch.
type Task struct {
	BatchID       string    `json:"batchId"`
	Index         int       `json:"index"`
	PatientID     string    `json:"patientId"`
	Documentation string    `json:"documentation"`
	MaxLoops      int       `json:"maxLoops,omitempty"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
}

type Delivery struct {
	ID       string    `json:"id"`
	Stream   string    `json:"stream"`
	Task     Task      `json:"task"`
	Received time.Time `json:"received"`
}

type Stats struct {
	StreamLength int64 `json:"streamLength"`
	DLQLength    int64 `json:"dlqLength"`
	Pending      int64 `json:"pending"`
}

// Queue delivers each task to one consumer of a group. Tasks are not
// redelivered after Ack.
type Queue interface {
	Enqueue(ctx context.Context, task Task) (string, error)
	Claim(ctx context.Context, consumer string, block time.Duration, count int) ([]Delivery, error)
	Ack(ctx context.Context, consumer string, messageIDs ...string) error
	DeadLetter(ctx context.Context, messageID, payload, reason string) (string, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

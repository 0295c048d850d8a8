// Package taskqueue durable at-least-once delayed work items.
//
// A claimed task stays invisible for the visibility timeout; a task that is
// neither acked nor nacked by then is delivered again.
package taskqueue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDrop a handler error wrapping ErrDrop acks the task without retry
	ErrDrop = errors.New("drop task")
)

type Task struct {
	ID       int64
	Kind     string
	DedupKey string
	Payload  []byte
	// Attempts counts deliveries including the current one
	Attempts int
	RunAt    time.Time
}

type Queue interface {
	// Enqueue schedules payload at runAt; false when a task with the same
	// non-empty dedupKey was already enqueued
	Enqueue(ctx context.Context, kind, dedupKey string, payload []byte, runAt time.Time) (bool, error)
	// Claim returns the next task due at now, nil when none is due
	Claim(ctx context.Context, now time.Time, visibility time.Duration) (*Task, error)
	Ack(ctx context.Context, id int64, now time.Time) error
	Nack(ctx context.Context, id int64, retryAt time.Time) error
	// Pending counts tasks not acked yet
	Pending(ctx context.Context) (int, error)
	// Purge forgets tasks acked before t
	Purge(ctx context.Context, before time.Time) (int, error)
	Close() error
}

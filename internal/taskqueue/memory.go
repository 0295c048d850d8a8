package taskqueue

import (
	"context"
	"sync"
	"time"
)

type memTask struct {
	Task
	done   bool
	doneAt time.Time
}

// MemoryQueue in-process Queue for the memory engine and tests
type MemoryQueue struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*memTask
	dedup  map[string]int64
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		tasks: make(map[int64]*memTask),
		dedup: make(map[string]int64),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, kind, dedupKey string, payload []byte, runAt time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if dedupKey != "" {
		if _, ok := q.dedup[dedupKey]; ok {
			return false, nil
		}
	}
	q.nextID++
	t := &memTask{Task: Task{
		ID:       q.nextID,
		Kind:     kind,
		DedupKey: dedupKey,
		Payload:  append([]byte{}, payload...),
		RunAt:    runAt,
	}}
	q.tasks[t.ID] = t
	if dedupKey != "" {
		q.dedup[dedupKey] = t.ID
	}
	return true, nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, visibility time.Duration) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var next *memTask
	for _, t := range q.tasks {
		if t.done || t.RunAt.After(now) {
			continue
		}
		if next == nil || t.RunAt.Before(next.RunAt) || (t.RunAt.Equal(next.RunAt) && t.ID < next.ID) {
			next = t
		}
	}
	if next == nil {
		return nil, nil
	}
	next.Attempts++
	next.RunAt = now.Add(visibility)

	res := next.Task
	res.Payload = append([]byte{}, next.Payload...)
	return &res, nil
}

func (q *MemoryQueue) Ack(_ context.Context, id int64, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.tasks[id]; ok {
		t.done = true
		t.doneAt = now
	}
	return nil
}

func (q *MemoryQueue) Nack(_ context.Context, id int64, retryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.tasks[id]; ok && !t.done {
		t.RunAt = retryAt
	}
	return nil
}

func (q *MemoryQueue) Pending(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, t := range q.tasks {
		if !t.done {
			n++
		}
	}
	return n, nil
}

func (q *MemoryQueue) Purge(_ context.Context, before time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, t := range q.tasks {
		if t.done && t.doneAt.Before(before) {
			delete(q.tasks, id)
			if t.DedupKey != "" {
				delete(q.dedup, t.DedupKey)
			}
			n++
		}
	}
	return n, nil
}

func (q *MemoryQueue) Close() error {
	return nil
}

package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	once   sync.Once
	logger *zap.Logger
)

func getTestLogger() *zap.Logger {
	once.Do(func() {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			log.Fatal(err)
		}
	})

	return logger
}

func queues(t *testing.T) map[string]Queue {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	sq, err := NewSQLiteQueue(context.Background(), db, getTestLogger().Sugar())
	require.NoError(t, err)

	return map[string]Queue{
		"memory": NewMemoryQueue(),
		"sqlite": sq,
	}
}

func TestQueue_ClaimAckNack(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Unix(1000, 0)

			ok, err := q.Enqueue(ctx, "step", "g1/0", []byte("a"), now)
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = q.Enqueue(ctx, "step", "g1/0", []byte("a"), now)
			require.NoError(t, err)
			require.False(t, ok, "duplicate dedup key")
			ok, err = q.Enqueue(ctx, "step", "", []byte("later"), now.Add(time.Minute))
			require.NoError(t, err)
			require.True(t, ok)

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			require.Equal(t, 2, pending)

			task, err := q.Claim(ctx, now, 10*time.Second)
			require.NoError(t, err)
			require.NotNil(t, task)
			require.Equal(t, "step", task.Kind)
			require.Equal(t, "g1/0", task.DedupKey)
			require.Equal(t, []byte("a"), task.Payload)
			require.Equal(t, 1, task.Attempts)

			// invisible while claimed, the later task is not due yet
			none, err := q.Claim(ctx, now.Add(time.Second), 10*time.Second)
			require.NoError(t, err)
			require.Nil(t, none)

			// visibility timeout expired without ack: redelivered
			again, err := q.Claim(ctx, now.Add(11*time.Second), 10*time.Second)
			require.NoError(t, err)
			require.NotNil(t, again)
			require.Equal(t, task.ID, again.ID)
			require.Equal(t, 2, again.Attempts)

			require.NoError(t, q.Nack(ctx, again.ID, now.Add(30*time.Second)))
			none, err = q.Claim(ctx, now.Add(29*time.Second), 10*time.Second)
			require.NoError(t, err)
			require.Nil(t, none)

			again, err = q.Claim(ctx, now.Add(30*time.Second), 10*time.Second)
			require.NoError(t, err)
			require.Equal(t, task.ID, again.ID)
			require.NoError(t, q.Ack(ctx, again.ID, now.Add(30*time.Second)))

			pending, err = q.Pending(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, pending)

			// acked tasks still deduplicate until purged
			ok, err = q.Enqueue(ctx, "step", "g1/0", nil, now)
			require.NoError(t, err)
			require.False(t, ok)

			n, err := q.Purge(ctx, now.Add(time.Hour))
			require.NoError(t, err)
			require.Equal(t, 1, n)
			ok, err = q.Enqueue(ctx, "step", "g1/0", nil, now)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestWorker_RetryAndDrop(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	q := NewMemoryQueue()
	w := NewWorker(q, WorkerConfig{Backoff: time.Second, MaxBackoff: 4 * time.Second, MaxAttempts: 5, Now: clock.Now}, getTestLogger().Sugar())

	results := map[Result]int{}
	w.Observe(func(_ string, res Result) { results[res]++ })

	failures := 2
	var runs int
	w.Handle("flaky", func(_ context.Context, _ *Task) error {
		runs++
		if runs <= failures {
			return errors.New("transient")
		}
		return nil
	})
	w.Handle("stale", func(_ context.Context, _ *Task) error {
		return ErrDrop
	})

	_, err := q.Enqueue(ctx, "flaky", "", nil, clock.Now())
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "stale", "", nil, clock.Now())
	require.NoError(t, err)

	n, err := w.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 1, runs)

	clock.Advance(time.Second)
	_, err = w.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, runs)

	// second failure backs off for two seconds
	clock.Advance(time.Second)
	n, err = w.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	clock.Advance(time.Second)
	_, err = w.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, runs)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, pending)
	require.Equal(t, map[Result]int{ResultRetried: 2, ResultAcked: 1, ResultDropped: 1}, results)
}

func TestWorker_MaxAttempts(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	q := NewMemoryQueue()
	w := NewWorker(q, WorkerConfig{Backoff: time.Second, MaxBackoff: time.Second, MaxAttempts: 3, Now: clock.Now}, getTestLogger().Sugar())
	w.Handle("broken", func(_ context.Context, _ *Task) error { return errors.New("boom") })

	_, err := q.Enqueue(ctx, "broken", "", nil, clock.Now())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = w.Drain(ctx)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, pending)
}

func TestWorker_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewMemoryQueue()
	w := NewWorker(q, WorkerConfig{Rate: 1000, Burst: 10, Poll: 5 * time.Millisecond}, getTestLogger().Sugar())

	done := make(chan struct{})
	var count int
	var mu sync.Mutex
	w.Handle("tick", func(_ context.Context, _ *Task) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		if count == 3 {
			close(done)
		}
		return nil
	})
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, "tick", "", nil, time.Now())
		require.NoError(t, err)
	}

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks not processed")
	}
	cancel()
	require.NoError(t, <-errc)
}

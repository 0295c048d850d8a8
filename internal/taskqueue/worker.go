package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler runs one task; a nil error acks it
type Handler func(ctx context.Context, t *Task) error

type WorkerConfig struct {
	// Rate and Burst throttle task execution, Rate 0 disables throttling
	Rate  float64
	Burst int
	// Poll is the idle wait between claims
	Poll time.Duration
	// Visibility hides a claimed task from other claims
	Visibility time.Duration
	// Backoff is the first retry delay, doubled on every attempt up to MaxBackoff
	Backoff    time.Duration
	MaxBackoff time.Duration
	// MaxAttempts drops a task after that many failed deliveries, 0 retries forever
	MaxAttempts int
	// Retention keeps acked tasks for deduplication
	Retention time.Duration
	// Now is the clock, time.Now when nil
	Now func() time.Time
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Poll <= 0 {
		c.Poll = 200 * time.Millisecond
	}
	if c.Visibility <= 0 {
		c.Visibility = time.Minute
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = c.Backoff
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Result of one delivery, for observers
type Result string

const (
	ResultAcked   Result = "acked"
	ResultRetried Result = "retried"
	ResultDropped Result = "dropped"
)

// Worker claims due tasks and runs the handler registered for their kind
type Worker struct {
	queue    Queue
	cfg      WorkerConfig
	limiter  *rate.Limiter
	mu       sync.RWMutex
	handlers map[string]Handler
	observe  func(kind string, res Result)
	sugar    *zap.SugaredLogger
}

func NewWorker(queue Queue, cfg WorkerConfig, sugar *zap.SugaredLogger) *Worker {
	cfg = cfg.withDefaults()
	w := &Worker{
		queue:    queue,
		cfg:      cfg,
		handlers: make(map[string]Handler),
		observe:  func(string, Result) {},
		sugar:    sugar,
	}
	if cfg.Rate > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}
	return w
}

// Handle registers h for kind
func (w *Worker) Handle(kind string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Observe sets a callback invoked after every delivery
func (w *Worker) Observe(fn func(kind string, res Result)) {
	w.observe = fn
}

func (w *Worker) Queue() Queue {
	return w.queue
}

// Run processes tasks until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	w.sugar.Infow("task worker started", "rate", w.cfg.Rate, "burst", w.cfg.Burst)
	defer w.sugar.Infow("task worker stopped")

	purge := time.NewTicker(w.cfg.Retention)
	defer purge.Stop()

	for {
		ran, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.sugar.Errorw("task worker", "error", err)
		}
		if ran && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-purge.C:
			if n, err := w.queue.Purge(ctx, w.cfg.Now().Add(-w.cfg.Retention)); err != nil {
				w.sugar.Errorw("task purge", "error", err)
			} else if n > 0 {
				w.sugar.Debugw("task purge", "tasks", n)
			}
		case <-time.After(w.cfg.Poll):
		}
	}
}

// RunOnce claims and runs at most one due task, reports whether one ran
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	t, err := w.queue.Claim(ctx, w.cfg.Now(), w.cfg.Visibility)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}

	w.mu.RLock()
	h, ok := w.handlers[t.Kind]
	w.mu.RUnlock()
	if !ok {
		w.sugar.Errorw("task without handler", "id", t.ID, "kind", t.Kind)
		w.observe(t.Kind, ResultDropped)
		return true, w.queue.Ack(ctx, t.ID, w.cfg.Now())
	}

	herr := h(ctx, t)
	switch {
	case herr == nil:
		w.observe(t.Kind, ResultAcked)
		return true, w.queue.Ack(ctx, t.ID, w.cfg.Now())

	case errors.Is(herr, ErrDrop):
		w.sugar.Infow("task dropped", "id", t.ID, "kind", t.Kind, "reason", herr)
		w.observe(t.Kind, ResultDropped)
		return true, w.queue.Ack(ctx, t.ID, w.cfg.Now())

	case w.cfg.MaxAttempts > 0 && t.Attempts >= w.cfg.MaxAttempts:
		w.sugar.Errorw("task gave up", "id", t.ID, "kind", t.Kind, "attempts", t.Attempts, "error", herr)
		w.observe(t.Kind, ResultDropped)
		return true, w.queue.Ack(ctx, t.ID, w.cfg.Now())
	}

	retryAt := w.cfg.Now().Add(w.backoff(t.Attempts))
	w.sugar.Warnw("task failed, retry", "id", t.ID, "kind", t.Kind, "attempts", t.Attempts, "retryAt", retryAt, "error", herr)
	w.observe(t.Kind, ResultRetried)
	if err := w.queue.Nack(ctx, t.ID, retryAt); err != nil {
		return true, fmt.Errorf("task %d: %w", t.ID, err)
	}
	return true, nil
}

// Drain runs tasks until none is due
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		ran, err := w.RunOnce(ctx)
		if err != nil {
			return n, err
		}
		if !ran {
			return n, nil
		}
		n++
	}
}

func (w *Worker) backoff(attempts int) time.Duration {
	d := w.cfg.Backoff
	for i := 1; i < attempts && d < w.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > w.cfg.MaxBackoff {
		d = w.cfg.MaxBackoff
	}
	return d
}

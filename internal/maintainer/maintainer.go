// Package maintainer recomputes the page boundary table one page per step.
//
// A pass begins with Start, which takes the pass lease and enqueues step 0.
// Every step reads one page from its start key, writes the boundary and
// enqueues its successor; the last step prunes the trailing boundaries and
// releases the lease.
package maintainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/S0me0neR0man/pagestash/internal/boundary"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/metrics"
	"github.com/S0me0neR0man/pagestash/internal/paging"
	"github.com/S0me0neR0man/pagestash/internal/taskqueue"
)

var (
	ErrPassInProgress  = errors.New("maintenance pass in progress")
	ErrStaleGeneration = errors.New("stale pass generation")
	// ErrSuperseded marks a step whose start key no longer matches the end of
	// the previous page; a later rerun of that page enqueued its replacement
	ErrSuperseded      = errors.New("step superseded")
)

const (
	DefaultPageSize = 1000
	DefaultLeaseTTL = 5 * time.Minute
)

type Config struct {
	PageSize int
	// LeaseTTL abandons a pass whose last heartbeat is older
	LeaseTTL time.Duration
	// StepDelay postpones each successor step
	StepDelay time.Duration
}

type Maintainer struct {
	fetcher *paging.Fetcher
	store   boundary.Store
	queue   taskqueue.Queue
	cfg     Config
	metrics *metrics.Metrics
	group   singleflight.Group
	started sync.Map // generation -> time.Time
	now     func() time.Time
	sugar   *zap.SugaredLogger
}

func New(fetcher *paging.Fetcher, store boundary.Store, queue taskqueue.Queue, cfg Config, m *metrics.Metrics, sugar *zap.SugaredLogger) *Maintainer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	return &Maintainer{
		fetcher: fetcher,
		store:   store,
		queue:   queue,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		sugar:   sugar,
	}
}

// Register installs the step handler on the worker
func (m *Maintainer) Register(w *taskqueue.Worker) {
	w.Handle(TaskKind, m.handleTask)
}

// Start begins a new pass and enqueues its first step
func (m *Maintainer) Start(ctx context.Context) (uint64, error) {
	v, err, _ := m.group.Do("start", func() (any, error) {
		now := m.now()
		gen, err := m.store.BeginPass(ctx, now, m.cfg.LeaseTTL)
		if errors.Is(err, boundary.ErrLeaseHeld) {
			return uint64(0), fmt.Errorf("%w: %w", ErrPassInProgress, err)
		}
		if err != nil {
			return uint64(0), fmt.Errorf("start pass: %w", err)
		}

		first := Step{Generation: gen}
		if err := m.enqueue(ctx, first, now); err != nil {
			if endErr := m.store.EndPass(ctx, gen); endErr != nil {
				m.sugar.Errorw("release lease", "generation", gen, "error", endErr)
			}
			return uint64(0), fmt.Errorf("start pass %d: %w", gen, err)
		}

		m.started.Store(gen, now)
		m.sugar.Infow("maintenance pass started", "generation", gen, "pageSize", m.cfg.PageSize)
		return gen, nil
	})
	return v.(uint64), err
}

func (m *Maintainer) enqueue(ctx context.Context, s Step, now time.Time) error {
	_, err := m.queue.Enqueue(ctx, TaskKind, s.dedupKey(), s.marshal(), now.Add(m.cfg.StepDelay))
	return err
}

func (m *Maintainer) handleTask(ctx context.Context, t *taskqueue.Task) error {
	s, err := unmarshalStep(t.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", taskqueue.ErrDrop, err)
	}
	err = m.Step(ctx, s)
	if errors.Is(err, ErrStaleGeneration) || errors.Is(err, ErrSuperseded) || errors.Is(err, keys.ErrValidation) {
		return fmt.Errorf("%w: %w", taskqueue.ErrDrop, err)
	}
	return err
}

// Step computes one page boundary. Rerunning a step with the same input
// writes the same boundary and enqueues the same successor.
func (m *Maintainer) Step(ctx context.Context, s Step) error {
	err := m.step(ctx, s)
	switch {
	case err == nil:
		m.metrics.StepsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrStaleGeneration):
		m.metrics.StepsTotal.WithLabelValues("stale").Inc()
		m.sugar.Infow("stale step dropped", "generation", s.Generation, "page", s.PageIndex)
	case errors.Is(err, ErrSuperseded):
		m.metrics.StepsTotal.WithLabelValues("superseded").Inc()
		m.sugar.Infow("superseded step dropped", "generation", s.Generation, "page", s.PageIndex,
			"start", s.StartKey.String())
	default:
		m.metrics.StepsTotal.WithLabelValues("error").Inc()
	}
	return err
}

func (m *Maintainer) step(ctx context.Context, s Step) error {
	if err := m.store.Heartbeat(ctx, s.Generation, m.now()); err != nil {
		if errors.Is(err, boundary.ErrLeaseLost) {
			return fmt.Errorf("%s: %w", s, ErrStaleGeneration)
		}
		return fmt.Errorf("%s: %w", s, err)
	}

	// page s.PageIndex must start where its predecessor ends
	var prev boundary.PageBoundary
	if s.PageIndex > 0 {
		var ok bool
		var err error
		prev, ok, err = m.store.Get(ctx, s.PageIndex-1)
		if err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
		if !ok || !prev.EndKey.Equal(s.StartKey) {
			return fmt.Errorf("%s: %w", s, ErrSuperseded)
		}
	}

	page, err := m.fetcher.Fetch(ctx, paging.Request{
		Start:     s.StartKey,
		Direction: keys.Ascending,
		MaxRows:   m.cfg.PageSize,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}

	if len(page.Documents) == 0 {
		return m.finishEmpty(ctx, s, prev)
	}

	var end keys.IndexKey
	if page.HasMore {
		end = page.Last
	}
	b := boundary.PageBoundary{PageIndex: s.PageIndex, StartKey: s.StartKey, EndKey: end}
	if err := m.store.Put(ctx, b); err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	m.sugar.Debugw("page boundary", "generation", s.Generation, "page", s.PageIndex,
		"rows", len(page.Documents), "start", s.StartKey.String(), "end", end.String())

	if !page.HasMore {
		return m.finish(ctx, s.Generation, s.PageIndex)
	}

	if _, err := m.store.PatchStart(ctx, s.PageIndex+1, end); err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	next := Step{Generation: s.Generation, PageIndex: s.PageIndex + 1, StartKey: end}
	if err := m.enqueue(ctx, next, m.now()); err != nil {
		return fmt.Errorf("%s: enqueue successor: %w", s, err)
	}
	return nil
}

// finishEmpty ends a pass whose step found no rows: an empty collection has
// no pages, otherwise the previous page becomes the last one
func (m *Maintainer) finishEmpty(ctx context.Context, s Step, prev boundary.PageBoundary) error {
	if s.PageIndex == 0 {
		return m.finish(ctx, s.Generation, -1)
	}

	prev.EndKey = nil
	if err := m.store.Put(ctx, prev); err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	return m.finish(ctx, s.Generation, s.PageIndex-1)
}

// finish prunes boundaries above last and releases the lease
func (m *Maintainer) finish(ctx context.Context, gen uint64, last int64) error {
	pruned, err := m.store.DeleteAbove(ctx, last)
	if err != nil {
		return fmt.Errorf("finish pass %d: %w", gen, err)
	}
	if err := m.store.EndPass(ctx, gen); err != nil {
		if errors.Is(err, boundary.ErrLeaseLost) {
			return fmt.Errorf("finish pass %d: %w", gen, ErrStaleGeneration)
		}
		return fmt.Errorf("finish pass %d: %w", gen, err)
	}

	pages := last + 1
	m.metrics.PassesTotal.WithLabelValues("completed").Inc()
	m.metrics.PageCount.Set(float64(pages))
	var elapsed time.Duration
	if v, ok := m.started.LoadAndDelete(gen); ok {
		elapsed = m.now().Sub(v.(time.Time))
		m.metrics.PassDuration.Observe(elapsed.Seconds())
	}
	m.sugar.Infow("maintenance pass finished",
		"generation", gen,
		"pages", pages,
		"pruned", pruned,
		"elapsed", elapsed,
	)
	return nil
}

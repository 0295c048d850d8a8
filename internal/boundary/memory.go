package boundary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/S0me0neR0man/pagestash/internal/keys"
)

type item PageBoundary

func (i item) Less(than btree.Item) bool {
	return i.PageIndex < than.(item).PageIndex
}

// MemoryStore keeps the table in a btree, for tests and the memory engine
type MemoryStore struct {
	mu    sync.RWMutex
	tree  *btree.BTree
	lease Lease
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: btree.New(16)}
}

func clone(b PageBoundary) PageBoundary {
	return PageBoundary{PageIndex: b.PageIndex, StartKey: b.StartKey.Clone(), EndKey: b.EndKey.Clone()}
}

func (s *MemoryStore) Get(_ context.Context, pageIndex int64) (PageBoundary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := s.tree.Get(item{PageIndex: pageIndex})
	if res == nil {
		return PageBoundary{}, false, nil
	}
	return clone(PageBoundary(res.(item))), true, nil
}

func (s *MemoryStore) Put(_ context.Context, b PageBoundary) error {
	if b.PageIndex < 0 {
		return fmt.Errorf("put %s: %w: negative page index", b, keys.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.ReplaceOrInsert(item(clone(b)))
	return nil
}

func (s *MemoryStore) PatchStart(_ context.Context, pageIndex int64, start keys.IndexKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.tree.Get(item{PageIndex: pageIndex})
	if res == nil {
		return false, nil
	}
	b := res.(item)
	b.StartKey = start.Clone()
	s.tree.ReplaceOrInsert(b)
	return true, nil
}

func (s *MemoryStore) DeleteAbove(_ context.Context, pageIndex int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doomed []btree.Item
	s.tree.AscendGreaterOrEqual(item{PageIndex: pageIndex + 1}, func(i btree.Item) bool {
		doomed = append(doomed, i)
		return true
	})
	for _, i := range doomed {
		s.tree.Delete(i)
	}
	return len(doomed), nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := s.tree.Max()
	if last == nil {
		return 0, false, nil
	}
	return last.(item).PageIndex + 1, true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]PageBoundary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]PageBoundary, 0, s.tree.Len())
	s.tree.Ascend(func(i btree.Item) bool {
		res = append(res, clone(PageBoundary(i.(item))))
		return true
	})
	return res, nil
}

func (s *MemoryStore) BeginPass(_ context.Context, now time.Time, ttl time.Duration) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lease.expired(now, ttl) {
		return 0, fmt.Errorf("begin pass: generation %d: %w", s.lease.Generation, ErrLeaseHeld)
	}
	s.lease = Lease{Generation: s.lease.Generation + 1, Running: true, Heartbeat: now}
	return s.lease.Generation, nil
}

func (s *MemoryStore) Heartbeat(_ context.Context, generation uint64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lease.Running || s.lease.Generation != generation {
		return fmt.Errorf("heartbeat %d: %w", generation, ErrLeaseLost)
	}
	s.lease.Heartbeat = now
	return nil
}

func (s *MemoryStore) EndPass(_ context.Context, generation uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lease.Running || s.lease.Generation != generation {
		return fmt.Errorf("end pass %d: %w", generation, ErrLeaseLost)
	}
	s.lease.Running = false
	return nil
}

func (s *MemoryStore) Lease(_ context.Context) (Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lease, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

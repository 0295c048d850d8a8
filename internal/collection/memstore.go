package collection

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/record"
)

// MemStore in-memory Store on a red-black tree
type MemStore struct {
	mu     sync.RWMutex
	fields keys.FieldList
	tree   redBlackTree
	byID   map[string]keys.IndexKey
	maxCT  int64
	sugar  *zap.SugaredLogger
}

var _ Store = (*MemStore)(nil)

func NewMemStore(fields keys.FieldList, sugar *zap.SugaredLogger) (*MemStore, error) {
	if !fields.Unique() {
		return nil, fmt.Errorf("mem store %s: %w", fields, ErrNotUnique)
	}
	return &MemStore{
		fields: fields,
		byID:   make(map[string]keys.IndexKey),
		sugar:  sugar,
	}, nil
}

func (s *MemStore) Fields() keys.FieldList {
	return s.fields
}

// Insert adds the document, ErrDuplicate if its id is already stored
func (s *MemStore) Insert(_ context.Context, doc *record.Document) error {
	key, err := s.fields.KeyOf(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[doc.ID]; ok {
		return fmt.Errorf("insert %s: %w", doc.ID, ErrDuplicate)
	}
	if !s.tree.put(key, doc) {
		return fmt.Errorf("insert %s key %s: %w", doc.ID, key, ErrDuplicate)
	}
	s.byID[doc.ID] = key
	if doc.CreationTime > s.maxCT {
		s.maxCT = doc.CreationTime
	}
	s.sugar.Debugw("insert", "id", doc.ID, "key", key.String())
	return nil
}

func (s *MemStore) Remove(_ context.Context, id string) (*record.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	node := s.tree.get(key)
	if node == nil {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	doc := node.doc
	s.tree.remove(key)
	delete(s.byID, id)
	s.sugar.Debugw("remove", "id", id, "key", key.String())
	return doc, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*record.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	node := s.tree.get(key)
	if node == nil {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return node.doc, nil
}

func (s *MemStore) Scan(ctx context.Context, seg keys.Segment, dir keys.Direction, limit int) ([]*record.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		it   iterator
		step func() bool
	)
	if dir == keys.Descending {
		it = s.tree.iteratorAt(s.tree.seekLast(seg))
		step = it.prev
	} else {
		it = s.tree.iteratorAt(s.tree.seekFirst(seg))
		step = it.next
	}

	var docs []*record.Document
	for ok := it.valid(); ok; ok = step() {
		if limit > 0 && len(docs) >= limit {
			break
		}
		node := it.node()
		if !seg.Contains(node.key) {
			break
		}
		docs = append(docs, node.doc)
	}
	return docs, nil
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.size
}

func (s *MemStore) MaxCreationTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxCT
}

func (s *MemStore) Close() error {
	return nil
}

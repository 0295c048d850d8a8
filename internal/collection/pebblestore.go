package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/record"
)

var (
	nsPrimary = []byte{0x01}
	nsID      = []byte{0x02}
)

// PebbleStore persistent Store on a Pebble LSM.
//
// Layout: 0x01 + encoded index key -> marshaled document,
// 0x02 + id -> 0x01 + encoded index key.
type PebbleStore struct {
	// mu serializes writers so the two namespaces stay consistent
	mu     sync.Mutex
	db     *pebble.DB
	fields keys.FieldList
	size   int
	maxCT  int64
	sugar  *zap.SugaredLogger
}

var _ Store = (*PebbleStore)(nil)

// OpenPebble opens (or creates) the collection in dir, an empty dir keeps it in memory
func OpenPebble(dir string, fields keys.FieldList, sugar *zap.SugaredLogger) (*PebbleStore, error) {
	if !fields.Unique() {
		return nil, fmt.Errorf("pebble store %s: %w", fields, ErrNotUnique)
	}

	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble store: open: %w", err)
	}

	s := &PebbleStore{db: db, fields: fields, sugar: sugar}
	if err := s.restore(); err != nil {
		_ = db.Close()
		return nil, err
	}
	sugar.Infow("pebble store opened", "dir", dir, "fields", fields.String(), "records", s.size)
	return s, nil
}

// restore counts the records and finds the newest creation time
func (s *PebbleStore) restore() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: nsPrimary, UpperBound: keys.PrefixEnd(nsPrimary)})
	if err != nil {
		return fmt.Errorf("pebble store: restore: %w", err)
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		doc, err := record.Unmarshal(iter.Value())
		if err != nil {
			return fmt.Errorf("pebble store: restore: %w", err)
		}
		s.size++
		if doc.CreationTime > s.maxCT {
			s.maxCT = doc.CreationTime
		}
	}
	return iter.Error()
}

func (s *PebbleStore) Fields() keys.FieldList {
	return s.fields
}

func primaryKey(key keys.IndexKey) []byte {
	return keys.AppendKey(append([]byte{}, nsPrimary...), key)
}

func idKey(id string) []byte {
	return append(append([]byte{}, nsID...), id...)
}

// lookup returns a copy of the value stored at k, nil when absent
func (s *PebbleStore) lookup(k []byte) ([]byte, error) {
	val, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	result := make([]byte, len(val))
	copy(result, val)
	_ = closer.Close()
	return result, nil
}

func (s *PebbleStore) Insert(_ context.Context, doc *record.Document) error {
	key, err := s.fields.KeyOf(doc)
	if err != nil {
		return err
	}
	pk := primaryKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, err := s.lookup(idKey(doc.ID)); err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	} else if prev != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, ErrDuplicate)
	}
	if prev, err := s.lookup(pk); err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	} else if prev != nil {
		return fmt.Errorf("insert %s key %s: %w", doc.ID, key, ErrDuplicate)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(pk, record.Marshal(doc), nil); err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	if err := batch.Set(idKey(doc.ID), pk, nil); err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}

	s.size++
	if doc.CreationTime > s.maxCT {
		s.maxCT = doc.CreationTime
	}
	s.sugar.Debugw("insert", "id", doc.ID, "key", key.String())
	return nil
}

func (s *PebbleStore) Remove(_ context.Context, id string) (*record.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk, err := s.lookup(idKey(id))
	if err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}
	if pk == nil {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	raw, err := s.lookup(pk)
	if err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	doc, err := record.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(pk, nil); err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}
	if err := batch.Delete(idKey(id), nil); err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}

	s.size--
	s.sugar.Debugw("remove", "id", id)
	return doc, nil
}

func (s *PebbleStore) Get(_ context.Context, id string) (*record.Document, error) {
	pk, err := s.lookup(idKey(id))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if pk == nil {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	raw, err := s.lookup(pk)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return record.Unmarshal(raw)
}

func (s *PebbleStore) Scan(ctx context.Context, seg keys.Segment, dir keys.Direction, limit int) ([]*record.Document, error) {
	lower, upper := seg.ByteRange(nsPrimary)
	if upper == nil {
		upper = keys.PrefixEnd(nsPrimary)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", seg, err)
	}
	defer iter.Close()

	var valid bool
	var step func() bool
	if dir == keys.Descending {
		valid = iter.Last()
		step = iter.Prev
	} else {
		valid = iter.First()
		step = iter.Next
	}

	var docs []*record.Document
	for ; valid; valid = step() {
		if limit > 0 && len(docs) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := record.Unmarshal(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", seg, err)
		}
		docs = append(docs, doc)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", seg, err)
	}
	return docs, nil
}

func (s *PebbleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *PebbleStore) MaxCreationTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCT
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// Package record the documents of the base collection
package record

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/S0me0neR0man/pagestash/internal/keys"
)

const (
	WordField = "word"
)

// Document one item of the base collection
type Document struct {
	ID           string
	CreationTime int64
	Fields       map[string]keys.Value
}

// Field makes Document a keys.Fielder; _id and _creationTime are addressable
func (d *Document) Field(name string) (keys.Value, bool) {
	switch name {
	case keys.FieldID:
		return keys.String(d.ID), true
	case keys.FieldCreationTime:
		return keys.Int(d.CreationTime), true
	}
	v, ok := d.Fields[name]
	return v, ok
}

// Word returns the word field, empty if absent
func (d *Document) Word() string {
	v, ok := d.Fields[WordField]
	if !ok || v.Kind() != keys.KindString {
		return ""
	}
	return v.AsString()
}

func (d *Document) String() string {
	return fmt.Sprintf("Document{ID: %s, CreationTime: %d, Fields: %d}", d.ID, d.CreationTime, len(d.Fields))
}

// Sequencer hands out strictly increasing creation times
type Sequencer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewSequencer() *Sequencer {
	return &Sequencer{now: time.Now}
}

// Observe makes later values greater than v, used after restoring a collection
func (s *Sequencer) Observe(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v > s.last {
		s.last = v
	}
}

func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UnixNano()
	if t <= s.last {
		t = s.last + 1
	}
	s.last = t
	return t
}

// New makes a document with a fresh identity
func (s *Sequencer) New(fields map[string]keys.Value) *Document {
	f := make(map[string]keys.Value, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &Document{
		ID:           uuid.New().String(),
		CreationTime: s.Next(),
		Fields:       f,
	}
}

// Marshal encodes the document with the tuple codec:
// id, creation time, field count, then name/value pairs sorted by name
func Marshal(d *Document) []byte {
	b := keys.AppendValue(nil, keys.String(d.ID))
	b = keys.AppendValue(b, keys.Int(d.CreationTime))
	b = keys.AppendValue(b, keys.Int(int64(len(d.Fields))))

	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b = keys.AppendValue(b, keys.String(name))
		b = keys.AppendValue(b, d.Fields[name])
	}
	return b
}

// Unmarshal is the inverse of Marshal
func Unmarshal(b []byte) (*Document, error) {
	vals, err := keys.DecodeKey(b)
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if len(vals) < 3 || vals[0].Kind() != keys.KindString || vals[1].Kind() != keys.KindInt || vals[2].Kind() != keys.KindInt {
		return nil, fmt.Errorf("unmarshal document: %w: bad header", keys.ErrValidation)
	}
	n := int(vals[2].AsInt())
	if len(vals) != 3+2*n {
		return nil, fmt.Errorf("unmarshal document: %w: want %d fields, have %d values", keys.ErrValidation, n, len(vals)-3)
	}

	d := &Document{
		ID:           vals[0].AsString(),
		CreationTime: vals[1].AsInt(),
		Fields:       make(map[string]keys.Value, n),
	}
	for i := 3; i < len(vals); i += 2 {
		if vals[i].Kind() != keys.KindString {
			return nil, fmt.Errorf("unmarshal document: %w: field name is %s", keys.ErrValidation, vals[i].Kind())
		}
		d.Fields[vals[i].AsString()] = vals[i+1]
	}
	return d, nil
}

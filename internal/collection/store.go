// Package collection the base ordered record store.
//
// A Store keeps documents ordered by a composite index (keys.FieldList) and
// answers bounded scans of single keys.Segment values in either direction.
package collection

import (
	"context"
	"errors"

	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/record"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate index key")
	ErrNotUnique = errors.New("index fields must include _id")
)

// Store the base collection
type Store interface {
	Fields() keys.FieldList
	Insert(ctx context.Context, doc *record.Document) error
	Remove(ctx context.Context, id string) (*record.Document, error)
	Get(ctx context.Context, id string) (*record.Document, error)
	// Scan returns up to limit documents inside seg in dir order, limit <= 0 is unlimited
	Scan(ctx context.Context, seg keys.Segment, dir keys.Direction, limit int) ([]*record.Document, error)
	Len() int
	// MaxCreationTime is the greatest _creationTime stored, 0 when empty
	MaxCreationTime() int64
	Close() error
}

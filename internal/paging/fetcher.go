// Package paging reads bounded pages of the base collection
package paging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/collection"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/record"
)

// DefaultMaxRows is the page size of the range API when none is given
const DefaultMaxRows = 100

// Request one page read.
// Ascending reads start < k <= end, descending reads end <= k < start.
// MaxRows 0 reads the whole range.
type Request struct {
	Start     keys.IndexKey
	End       keys.IndexKey
	Direction keys.Direction
	MaxRows   int
}

type Page struct {
	Documents []*record.Document
	// HasMore is true iff the range holds a key beyond the last returned one
	HasMore bool
	// Last is the key of the last returned document, empty if none
	Last keys.IndexKey
}

type Fetcher struct {
	store collection.Store
	sugar *zap.SugaredLogger
}

func NewFetcher(store collection.Store, sugar *zap.SugaredLogger) *Fetcher {
	return &Fetcher{store: store, sugar: sugar}
}

func (f *Fetcher) Fields() keys.FieldList {
	return f.store.Fields()
}

// Fetch runs the split segments of the request in order
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Page, error) {
	if req.MaxRows < 0 {
		return nil, fmt.Errorf("%w: max rows %d", keys.ErrValidation, req.MaxRows)
	}
	fields := f.store.Fields()
	segments, err := keys.Split(fields, req.Start, req.End, req.Direction)
	if err != nil {
		return nil, err
	}

	page := &Page{}
	for i, seg := range segments {
		if req.MaxRows == 0 {
			docs, err := f.store.Scan(ctx, seg, req.Direction, 0)
			if err != nil {
				return nil, err
			}
			page.Documents = append(page.Documents, docs...)
			continue
		}

		remaining := req.MaxRows - len(page.Documents)
		if remaining == 0 {
			more, err := f.probe(ctx, segments[i:], req.Direction)
			if err != nil {
				return nil, err
			}
			page.HasMore = more
			break
		}

		docs, err := f.store.Scan(ctx, seg, req.Direction, remaining+1)
		if err != nil {
			return nil, err
		}
		if len(docs) > remaining {
			page.Documents = append(page.Documents, docs[:remaining]...)
			page.HasMore = true
			break
		}
		page.Documents = append(page.Documents, docs...)
	}

	if n := len(page.Documents); n > 0 {
		page.Last, err = fields.KeyOf(page.Documents[n-1])
		if err != nil {
			return nil, err
		}
	}

	f.sugar.Debugw("fetch",
		"start", req.Start.String(),
		"end", req.End.String(),
		"dir", req.Direction.String(),
		"segments", len(segments),
		"rows", len(page.Documents),
		"hasMore", page.HasMore,
	)
	return page, nil
}

// probe reports whether any of segments holds a row
func (f *Fetcher) probe(ctx context.Context, segments []keys.Segment, dir keys.Direction) (bool, error) {
	for _, seg := range segments {
		docs, err := f.store.Scan(ctx, seg, dir, 1)
		if err != nil {
			return false, err
		}
		if len(docs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

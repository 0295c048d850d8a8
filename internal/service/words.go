// Package service the query surface over the base collection and the page boundary table
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/boundary"
	"github.com/S0me0neR0man/pagestash/internal/collection"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/maintainer"
	"github.com/S0me0neR0man/pagestash/internal/metrics"
	"github.com/S0me0neR0man/pagestash/internal/paging"
	"github.com/S0me0neR0man/pagestash/internal/record"
)

var (
	ErrInvalidPageIndex = errors.New("invalid page index")
)

type CacheConfig struct {
	Enabled bool
	// MaxCost is counted in documents
	MaxCost int64
	TTL     time.Duration
}

// Words the word list service
type Words struct {
	coll    collection.Store
	fetcher *paging.Fetcher
	bounds  boundary.Store
	starter maintainer.Starter
	seq     *record.Sequencer

	cache    *ristretto.Cache[string, []*record.Document]
	cacheTTL time.Duration
	// epoch changes on every write and is part of every cache key
	epoch atomic.Uint64

	metrics *metrics.Metrics
	sugar   *zap.SugaredLogger
}

func New(coll collection.Store, bounds boundary.Store, starter maintainer.Starter, cacheCfg CacheConfig, m *metrics.Metrics, sugar *zap.SugaredLogger) (*Words, error) {
	w := &Words{
		coll:     coll,
		fetcher:  paging.NewFetcher(coll, sugar),
		bounds:   bounds,
		starter:  starter,
		seq:      record.NewSequencer(),
		cacheTTL: cacheCfg.TTL,
		metrics:  m,
		sugar:    sugar,
	}
	w.seq.Observe(coll.MaxCreationTime())

	if cacheCfg.Enabled {
		if cacheCfg.MaxCost <= 0 {
			cacheCfg.MaxCost = 100_000
		}
		cache, err := ristretto.NewCache(&ristretto.Config[string, []*record.Document]{
			NumCounters: cacheCfg.MaxCost * 10,
			MaxCost:     cacheCfg.MaxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("page cache: %w", err)
		}
		w.cache = cache
	}
	return w, nil
}

func (w *Words) Fields() keys.FieldList {
	return w.coll.Fields()
}

// Insert appends a document with the given fields; boundaries catch up on the next pass
func (w *Words) Insert(ctx context.Context, fields map[string]keys.Value) (*record.Document, error) {
	for name, v := range fields {
		if name == keys.FieldID || name == keys.FieldCreationTime {
			return nil, fmt.Errorf("%w: field %q is reserved", keys.ErrValidation, name)
		}
		if !v.IsValid() {
			return nil, fmt.Errorf("%w: field %q has no value", keys.ErrValidation, name)
		}
	}

	doc := w.seq.New(fields)
	if err := w.coll.Insert(ctx, doc); err != nil {
		return nil, err
	}
	w.invalidate()
	return doc, nil
}

func (w *Words) InsertWord(ctx context.Context, word string) (*record.Document, error) {
	return w.Insert(ctx, map[string]keys.Value{record.WordField: keys.String(word)})
}

func (w *Words) Remove(ctx context.Context, id string) error {
	if _, err := w.coll.Remove(ctx, id); err != nil {
		return err
	}
	w.invalidate()
	return nil
}

func (w *Words) Get(ctx context.Context, id string) (*record.Document, error) {
	return w.coll.Get(ctx, id)
}

func (w *Words) Len() int {
	return w.coll.Len()
}

// PageCount is the number of computed pages, false before the first pass
func (w *Words) PageCount(ctx context.Context) (int64, bool, error) {
	return w.bounds.Count(ctx)
}

// PageOfWords reads the page delimited by the stored boundary
func (w *Words) PageOfWords(ctx context.Context, pageIndex int64) ([]*record.Document, error) {
	if pageIndex < 0 {
		return nil, fmt.Errorf("page %d: %w", pageIndex, ErrInvalidPageIndex)
	}
	b, ok, err := w.bounds.Get(ctx, pageIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("page %d: %w", pageIndex, ErrInvalidPageIndex)
	}

	ck := w.cacheKey(b)
	if w.cache != nil {
		if docs, ok := w.cache.Get(ck); ok {
			w.metrics.CacheTotal.WithLabelValues("hit").Inc()
			return append([]*record.Document(nil), docs...), nil
		}
		w.metrics.CacheTotal.WithLabelValues("miss").Inc()
	}

	page, err := w.fetcher.Fetch(ctx, paging.Request{
		Start:     b.StartKey,
		End:       b.EndKey,
		Direction: keys.Ascending,
	})
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageIndex, err)
	}

	if w.cache != nil {
		cached := append([]*record.Document(nil), page.Documents...)
		w.cache.SetWithTTL(ck, cached, int64(len(cached))+1, w.cacheTTL)
	}
	return page.Documents, nil
}

// Range reads an arbitrary key range, MaxRows 0 means DefaultMaxRows
func (w *Words) Range(ctx context.Context, req paging.Request) (*paging.Page, error) {
	if req.MaxRows == 0 {
		req.MaxRows = paging.DefaultMaxRows
	}
	return w.fetcher.Fetch(ctx, req)
}

// ComputePages starts a maintenance pass
func (w *Words) ComputePages(ctx context.Context) (uint64, error) {
	return w.starter.Start(ctx)
}

func (w *Words) Close() {
	if w.cache != nil {
		w.cache.Close()
	}
}

func (w *Words) invalidate() {
	w.epoch.Add(1)
}

func (w *Words) cacheKey(b boundary.PageBoundary) string {
	return strconv.FormatUint(w.epoch.Load(), 10) + "/" +
		hex.EncodeToString(keys.EncodeKey(b.StartKey)) + "/" +
		hex.EncodeToString(keys.EncodeKey(b.EndKey))
}

package paging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/collection"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/record"
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

var wordFields = keys.FieldList{
	{Name: record.WordField, Kind: keys.KindString},
	{Name: keys.FieldCreationTime, Kind: keys.KindInt},
	{Name: keys.FieldID, Kind: keys.KindString},
}

// newTestFetcher fills a collection with n documents over 5 distinct words, returns the sorted keys
func newTestFetcher(t *testing.T, n int) (*Fetcher, []keys.IndexKey) {
	store, err := collection.NewMemStore(wordFields, getTestLogger().Sugar())
	require.NoError(t, err)

	seq := record.NewSequencer()
	for i := 0; i < n; i++ {
		doc := seq.New(map[string]keys.Value{record.WordField: keys.String(fmt.Sprintf("w%d", i%5))})
		require.NoError(t, store.Insert(context.Background(), doc))
	}

	docs, err := store.Scan(context.Background(), keys.Segment{}, keys.Ascending, 0)
	require.NoError(t, err)
	sorted := make([]keys.IndexKey, 0, len(docs))
	for _, d := range docs {
		k, err := wordFields.KeyOf(d)
		require.NoError(t, err)
		sorted = append(sorted, k)
	}
	return NewFetcher(store, getTestLogger().Sugar()), sorted
}

func countInRange(sorted []keys.IndexKey, start, end keys.IndexKey, dir keys.Direction) int {
	n := 0
	for _, k := range sorted {
		var in bool
		if dir == keys.Ascending {
			in = (start.IsUnbounded() || k.Compare(start) == keys.KeyMoreThan) &&
				(end.IsUnbounded() || k.Compare(end) != keys.KeyMoreThan)
		} else {
			in = (start.IsUnbounded() || k.Compare(start) == keys.KeyLessThan) &&
				(end.IsUnbounded() || k.Compare(end) != keys.KeyLessThan)
		}
		if in {
			n++
		}
	}
	return n
}

func TestFetcher_BoundAndHasMore(t *testing.T) {
	f, sorted := newTestFetcher(t, 40)
	bounds := []keys.IndexKey{{}, sorted[0], sorted[3], sorted[17], sorted[22], sorted[39]}

	for _, start := range bounds {
		for _, end := range bounds {
			for _, dir := range []keys.Direction{keys.Ascending, keys.Descending} {
				total := countInRange(sorted, start, end, dir)
				for _, maxRows := range []int{0, 1, 2, 7, total, total + 1} {
					page, err := f.Fetch(context.Background(), Request{Start: start, End: end, Direction: dir, MaxRows: maxRows})
					require.NoError(t, err)

					want := total
					if maxRows > 0 && maxRows < total {
						want = maxRows
					}
					require.Len(t, page.Documents, want, "start %s end %s %s max %d", start, end, dir, maxRows)
					require.Equal(t, want < total, page.HasMore, "start %s end %s %s max %d", start, end, dir, maxRows)

					for i := 1; i < len(page.Documents); i++ {
						prev, _ := wordFields.KeyOf(page.Documents[i-1])
						cur, _ := wordFields.KeyOf(page.Documents[i])
						if dir == keys.Ascending {
							require.Equal(t, keys.KeyLessThan, prev.Compare(cur))
						} else {
							require.Equal(t, keys.KeyMoreThan, prev.Compare(cur))
						}
					}
				}
			}
		}
	}
}

func TestFetcher_Last(t *testing.T) {
	f, sorted := newTestFetcher(t, 10)

	page, err := f.Fetch(context.Background(), Request{MaxRows: 4})
	require.NoError(t, err)
	require.True(t, page.HasMore)
	require.True(t, sorted[3].Equal(page.Last))

	next, err := f.Fetch(context.Background(), Request{Start: page.Last, MaxRows: 4})
	require.NoError(t, err)
	k, _ := wordFields.KeyOf(next.Documents[0])
	require.True(t, sorted[4].Equal(k))

	empty, err := f.Fetch(context.Background(), Request{Start: sorted[9]})
	require.NoError(t, err)
	require.Empty(t, empty.Documents)
	require.False(t, empty.HasMore)
	require.True(t, empty.Last.IsUnbounded())
}

func TestFetcher_Validation(t *testing.T) {
	f, _ := newTestFetcher(t, 1)

	_, err := f.Fetch(context.Background(), Request{MaxRows: -1})
	require.ErrorIs(t, err, keys.ErrValidation)

	_, err = f.Fetch(context.Background(), Request{Start: keys.IndexKey{keys.Int(1)}})
	require.ErrorIs(t, err, keys.ErrValidation)
}

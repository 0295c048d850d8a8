package boundary

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/keys"
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

func stores(t *testing.T) map[string]Store {
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "boundaries.db"), keys.DefaultFields(), getTestLogger().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func key(ct int64, id string) keys.IndexKey {
	return keys.IndexKey{keys.Int(ct), keys.String(id)}
}

func TestStore_Table(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Count(ctx)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Put(ctx, PageBoundary{PageIndex: 0, EndKey: key(10, "a")}))
			require.NoError(t, s.Put(ctx, PageBoundary{PageIndex: 1, StartKey: key(10, "a"), EndKey: key(20, "b")}))
			require.NoError(t, s.Put(ctx, PageBoundary{PageIndex: 2, StartKey: key(20, "b")}))

			count, ok, err := s.Count(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			require.EqualValues(t, 3, count)

			b, ok, err := s.Get(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, key(10, "a").Equal(b.StartKey))
			require.True(t, key(20, "b").Equal(b.EndKey))

			b, ok, err = s.Get(ctx, 0)
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, b.StartKey.IsUnbounded())

			_, ok, err = s.Get(ctx, 7)
			require.NoError(t, err)
			require.False(t, ok)

			patched, err := s.PatchStart(ctx, 2, key(15, "c"))
			require.NoError(t, err)
			require.True(t, patched)
			patched, err = s.PatchStart(ctx, 9, key(15, "c"))
			require.NoError(t, err)
			require.False(t, patched)

			b, _, err = s.Get(ctx, 2)
			require.NoError(t, err)
			require.True(t, key(15, "c").Equal(b.StartKey))

			n, err := s.DeleteAbove(ctx, 0)
			require.NoError(t, err)
			require.Equal(t, 2, n)

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.EqualValues(t, 0, list[0].PageIndex)

			n, err = s.DeleteAbove(ctx, -1)
			require.NoError(t, err)
			require.Equal(t, 1, n)
			_, ok, err = s.Count(ctx)
			require.NoError(t, err)
			require.False(t, ok)

			require.ErrorIs(t, s.Put(ctx, PageBoundary{PageIndex: -1}), keys.ErrValidation)
		})
	}
}

func TestStore_Lease(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Unix(1000, 0)
			ttl := time.Minute

			gen, err := s.BeginPass(ctx, now, ttl)
			require.NoError(t, err)
			require.EqualValues(t, 1, gen)

			_, err = s.BeginPass(ctx, now.Add(time.Second), ttl)
			require.ErrorIs(t, err, ErrLeaseHeld)

			require.NoError(t, s.Heartbeat(ctx, gen, now.Add(50*time.Second)))
			_, err = s.BeginPass(ctx, now.Add(90*time.Second), ttl)
			require.ErrorIs(t, err, ErrLeaseHeld)

			// heartbeat went stale, the next pass takes over
			gen2, err := s.BeginPass(ctx, now.Add(200*time.Second), ttl)
			require.NoError(t, err)
			require.EqualValues(t, 2, gen2)

			require.ErrorIs(t, s.Heartbeat(ctx, gen, now.Add(201*time.Second)), ErrLeaseLost)
			require.ErrorIs(t, s.EndPass(ctx, gen), ErrLeaseLost)
			require.NoError(t, s.EndPass(ctx, gen2))
			require.ErrorIs(t, s.EndPass(ctx, gen2), ErrLeaseLost)

			lease, err := s.Lease(ctx)
			require.NoError(t, err)
			require.False(t, lease.Running)
			require.EqualValues(t, 2, lease.Generation)

			gen3, err := s.BeginPass(ctx, now.Add(201*time.Second), ttl)
			require.NoError(t, err)
			require.EqualValues(t, 3, gen3)
		})
	}
}

func TestSQLiteStore_ValidatesKeys(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "b.db"), keys.DefaultFields(), getTestLogger().Sugar())
	require.NoError(t, err)
	defer s.Close()

	err = s.Put(context.Background(), PageBoundary{PageIndex: 0, EndKey: keys.IndexKey{keys.String("x")}})
	require.ErrorIs(t, err, keys.ErrValidation)

	// a table written under another field list fails closed on read
	_, err = s.DB().Exec("INSERT INTO page_boundaries (page_index, start_key, end_key) VALUES (0, ?, ?)",
		[]byte{}, keys.EncodeKey(keys.IndexKey{keys.String("x")}))
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), 0)
	require.ErrorIs(t, err, keys.ErrValidation)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.db")
	s, err := OpenSQLite(path, keys.DefaultFields(), getTestLogger().Sugar())
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), PageBoundary{PageIndex: 4, StartKey: key(1, "a")}))
	_, err = s.BeginPass(context.Background(), time.Now(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, keys.DefaultFields(), getTestLogger().Sugar())
	require.NoError(t, err)
	defer s.Close()

	count, ok, err := s.Count(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, count)

	lease, err := s.Lease(context.Background())
	require.NoError(t, err)
	require.True(t, lease.Running)
	require.EqualValues(t, 1, lease.Generation)
}

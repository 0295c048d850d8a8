package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/S0me0neR0man/pagestash/internal/boundary"
	"github.com/S0me0neR0man/pagestash/internal/client"
	"github.com/S0me0neR0man/pagestash/internal/collection"
	"github.com/S0me0neR0man/pagestash/internal/config"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/maintainer"
	"github.com/S0me0neR0man/pagestash/internal/metrics"
	"github.com/S0me0neR0man/pagestash/internal/paging"
	"github.com/S0me0neR0man/pagestash/internal/service"
	"github.com/S0me0neR0man/pagestash/internal/taskqueue"
)

var (
	once   sync.Once
	logger *zap.Logger
)

func getTestLogger() *zap.Logger {
	once.Do(func() {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
	})

	return logger
}

var wordFields = keys.FieldList{
	{Name: "word", Kind: keys.KindString},
	{Name: keys.FieldCreationTime, Kind: keys.KindInt},
	{Name: keys.FieldID, Kind: keys.KindString},
}

type fixture struct {
	worker  *taskqueue.Worker
	metrics *metrics.Metrics
	lis     *bufconn.Listener
}

func startServer(t *testing.T, authToken string) *fixture {
	sugar := getTestLogger().Sugar()
	m := metrics.NewUnregistered()

	coll, err := collection.NewMemStore(wordFields, sugar)
	require.NoError(t, err)
	bounds := boundary.NewMemoryStore()
	queue := taskqueue.NewMemoryQueue()
	worker := taskqueue.NewWorker(queue, taskqueue.WorkerConfig{}, sugar)
	maint := maintainer.New(paging.NewFetcher(coll, sugar), bounds, queue, maintainer.Config{PageSize: 4}, m, sugar)
	maint.Register(worker)

	words, err := service.New(coll, bounds, maint, service.CacheConfig{Enabled: true}, m, sugar)
	require.NoError(t, err)
	t.Cleanup(words.Close)

	ctx, cancel := context.WithCancel(context.Background())
	lis := bufconn.Listen(1 << 20)
	ss := NewGRPCServer(words, config.ServerConfig{AuthToken: authToken}, m, getTestLogger())
	go func() {
		_ = ss.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		ss.Wait()
	})

	return &fixture{worker: worker, metrics: m, lis: lis}
}

func (f *fixture) dial(t *testing.T, authToken string) *client.GRPCClient {
	c, err := client.NewGRPCClient("passthrough:///bufnet", wordFields, authToken,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return f.lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCServer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := startServer(t, "")
	c := f.dial(t, "")

	_, ok, err := c.PageCount(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ids := make(map[string]string)
	for i := 9; i >= 0; i-- {
		word := fmt.Sprintf("w%02d", i)
		doc, err := c.InsertWord(ctx, word)
		require.NoError(t, err)
		require.Equal(t, word, doc.Word())
		require.Positive(t, doc.CreationTime)
		ids[word] = doc.ID
	}

	got, err := c.Get(ctx, ids["w03"])
	require.NoError(t, err)
	require.Equal(t, "w03", got.Word())

	gen, err := c.ComputePages(ctx)
	require.NoError(t, err)
	require.Positive(t, gen)
	_, err = f.worker.Drain(ctx)
	require.NoError(t, err)

	count, ok, err := c.PageCount(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), count)

	var words []string
	for p := int64(0); p < count; p++ {
		docs, err := c.PageOfWords(ctx, p)
		require.NoError(t, err)
		for _, d := range docs {
			words = append(words, d.Word())
		}
	}
	require.Equal(t, []string{"w00", "w01", "w02", "w03", "w04", "w05", "w06", "w07", "w08", "w09"}, words)

	page, err := c.Range(ctx, paging.Request{Direction: keys.Descending, MaxRows: 3})
	require.NoError(t, err)
	require.Len(t, page.Documents, 3)
	require.True(t, page.HasMore)
	require.Equal(t, "w07", page.Documents[2].Word())

	next, err := c.Range(ctx, paging.Request{Start: page.Last, Direction: keys.Descending, MaxRows: 100})
	require.NoError(t, err)
	require.Len(t, next.Documents, 7)
	require.False(t, next.HasMore)

	require.NoError(t, c.Remove(ctx, ids["w03"]))
	_, err = c.Get(ctx, ids["w03"])
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCServer_ErrorCodes(t *testing.T) {
	ctx := context.Background()
	f := startServer(t, "")
	c := f.dial(t, "")

	_, err := c.PageOfWords(ctx, 0)
	require.Equal(t, codes.OutOfRange, status.Code(err))

	_, err = c.Insert(ctx, map[string]any{"word": 12})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Insert(ctx, map[string]any{"_id": "mine", "word": "x"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Range(ctx, paging.Request{Start: keys.IndexKey{keys.Int(1)}, MaxRows: 1})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	require.Equal(t, codes.NotFound, status.Code(c.Remove(ctx, "nope")))

	_, err = c.ComputePages(ctx)
	require.NoError(t, err)
	_, err = c.ComputePages(ctx)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPCServer_Token(t *testing.T) {
	ctx := context.Background()
	f := startServer(t, "s3cret")

	_, _, err := f.dial(t, "").PageCount(ctx)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, _, err = f.dial(t, "wrong").PageCount(ctx)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, _, err = f.dial(t, "s3cret").PageCount(ctx)
	require.NoError(t, err)
}

func TestToStatus(t *testing.T) {
	require.NoError(t, toStatus(nil))
	require.Equal(t, codes.OutOfRange, status.Code(toStatus(fmt.Errorf("page 3: %w", service.ErrInvalidPageIndex))))
	require.Equal(t, codes.FailedPrecondition, status.Code(toStatus(maintainer.ErrPassInProgress)))
	require.Equal(t, codes.Internal, status.Code(toStatus(fmt.Errorf("disk on fire"))))
}

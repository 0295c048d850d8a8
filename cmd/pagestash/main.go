package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/S0me0neR0man/pagestash/internal/boundary"
	"github.com/S0me0neR0man/pagestash/internal/collection"
	"github.com/S0me0neR0man/pagestash/internal/config"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/logger"
	"github.com/S0me0neR0man/pagestash/internal/maintainer"
	"github.com/S0me0neR0man/pagestash/internal/metrics"
	"github.com/S0me0neR0man/pagestash/internal/paging"
	"github.com/S0me0neR0man/pagestash/internal/server"
	"github.com/S0me0neR0man/pagestash/internal/service"
	"github.com/S0me0neR0man/pagestash/internal/taskqueue"
)

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(conf.Logger, "pagestash")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, conf, zl); err != nil {
		zl.Fatal("pagestash", zap.Error(err))
	}
}

func run(ctx context.Context, conf *config.Config, zl *zap.Logger) error {
	sugar := zl.Sugar()

	fields, err := conf.Fields()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	coll, err := openCollection(conf.Storage, fields, sugar)
	if err != nil {
		return err
	}
	defer closeLogged(sugar, "collection", coll.Close)

	bounds, queue, err := openBoundaries(ctx, conf.Boundaries, fields, sugar)
	if err != nil {
		return err
	}
	defer closeLogged(sugar, "boundaries", bounds.Close)
	defer closeLogged(sugar, "task queue", queue.Close)

	worker := taskqueue.NewWorker(queue, taskqueue.WorkerConfig{
		Rate:        conf.Maintainer.StepRate,
		Burst:       conf.Maintainer.StepBurst,
		Backoff:     conf.Maintainer.RetryBackoff,
		MaxAttempts: conf.Maintainer.MaxAttempts,
	}, sugar)
	worker.Observe(func(kind string, res taskqueue.Result) {
		m.TasksTotal.WithLabelValues(kind, string(res)).Inc()
	})

	maint := maintainer.New(paging.NewFetcher(coll, sugar), bounds, queue, maintainer.Config{
		PageSize: conf.Maintainer.PageSize,
		LeaseTTL: conf.Maintainer.LeaseTTL,
	}, m, sugar)
	maint.Register(worker)

	trigger, err := maintainer.NewTrigger(maint, maintainer.TriggerConfig{
		Interval: conf.Maintainer.Interval,
		DailyAt:  conf.Maintainer.DailyAt,
	}, sugar)
	if err != nil {
		return err
	}

	words, err := service.New(coll, bounds, maint, service.CacheConfig{
		Enabled: conf.Cache.Enabled,
		MaxCost: conf.Cache.MaxCost,
		TTL:     conf.Cache.TTL,
	}, m, sugar)
	if err != nil {
		return err
	}
	defer words.Close()

	sugar.Infow("pagestash start",
		"records", words.Len(),
		"index", fields.String(),
		"storage", conf.Storage.Engine,
		"boundaries", conf.Boundaries.Engine,
	)

	ss := server.NewGRPCServer(words, conf.Server, m, zl)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ss.Start(ctx)
	})
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		return trigger.Run(ctx)
	})
	if conf.Server.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, conf.Server.MetricsAddr, m, sugar)
		})
	}

	err = g.Wait()
	ss.Wait()
	return err
}

func openCollection(conf config.StorageConfig, fields keys.FieldList, sugar *zap.SugaredLogger) (collection.Store, error) {
	if conf.Engine == config.EngineMemory {
		return collection.NewMemStore(fields, sugar)
	}
	return collection.OpenPebble(conf.Path, fields, sugar)
}

// openBoundaries the SQLite queue shares the boundary store's connection
func openBoundaries(ctx context.Context, conf config.BoundaryConfig, fields keys.FieldList, sugar *zap.SugaredLogger) (boundary.Store, taskqueue.Queue, error) {
	if conf.Engine == config.EngineMemory {
		return boundary.NewMemoryStore(), taskqueue.NewMemoryQueue(), nil
	}

	store, err := boundary.OpenSQLite(conf.Path, fields, sugar)
	if err != nil {
		return nil, nil, err
	}
	queue, err := taskqueue.NewSQLiteQueue(ctx, store.DB(), sugar)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, queue, nil
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, sugar *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	sugar.Infow("metrics server start", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func closeLogged(sugar *zap.SugaredLogger, what string, close func() error) {
	if err := close(); err != nil {
		sugar.Errorw("close", "what", what, "error", err)
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/client"
)

const (
	displayCounter = 1000
)

// Loader inserts words read from a list with a pool of goroutines
type Loader struct {
	toInsert chan string

	inserted atomic.Int64
	failed   atomic.Int64

	wg sync.WaitGroup

	client *client.GRPCClient
	sugar  *zap.SugaredLogger
}

func NewLoader(c *client.GRPCClient, logger *zap.Logger) *Loader {
	return &Loader{
		client:   c,
		sugar:    logger.Sugar(),
		toInsert: make(chan string),
	}
}

func (l *Loader) Go(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	l.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go l.insert(ctx)
	}
}

// Feed sends every non-empty line of r to the workers
func (l *Loader) Feed(ctx context.Context, r io.Reader) error {
	defer close(l.toInsert)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l.toInsert <- word:
		}
	}
	return scanner.Err()
}

func (l *Loader) Wait() (inserted, failed int64) {
	l.wg.Wait()
	return l.inserted.Load(), l.failed.Load()
}

func (l *Loader) insert(ctx context.Context) {
	defer l.wg.Done()

	for word := range l.toInsert {
		if _, err := l.client.InsertWord(ctx, word); err != nil {
			l.failed.Add(1)
			l.sugar.Errorw("insert", "word", word, "error", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if n := l.inserted.Add(1); n%displayCounter == 0 {
			l.sugar.Infow("loading", "inserted", n)
		}
	}
}

func load(ctx context.Context, c *client.GRPCClient, path string, workers int, logger *zap.Logger) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	l := NewLoader(c, logger)
	l.Go(ctx, workers)
	feedErr := l.Feed(ctx, r)
	inserted, failed := l.Wait()

	fmt.Printf("inserted %d, failed %d\n", inserted, failed)
	if feedErr != nil {
		return feedErr
	}
	if failed > 0 {
		return fmt.Errorf("%d inserts failed", failed)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/client"
	"github.com/S0me0neR0man/pagestash/internal/grpcproto"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/paging"
)

const usage = `usage: pagectl [flags] <command> [args]

commands:
  load <file>     insert every non-empty line of file as a word ("-" reads stdin)
  count           print the page count
  page <n>        print the words of page n
  range           print one range page, see -desc -max -cursor
  compute         start a maintenance pass
  check           verify the pages against a full range scan
`

func main() {
	addr := flag.String("addr", "127.0.0.1:3200", "pagestash gRPC address")
	authToken := flag.String("token", "", "shared auth token")
	index := flag.String("index", "", "server index fields, name:kind,...")
	workers := flag.Int("workers", 4, "concurrent inserts for load")
	desc := flag.Bool("desc", false, "range: read descending")
	maxRows := flag.Int("max", paging.DefaultMaxRows, "range: rows per page")
	cursor := flag.String("cursor", "", "range: start after this cursor")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if *verbose {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	fields, err := keys.ParseFieldList(*index)
	if err != nil {
		sugar.Fatalw("index", "error", err)
	}

	c, err := client.NewGRPCClient(*addr, fields, *authToken)
	if err != nil {
		sugar.Fatalw("connect", "error", err)
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	switch cmd := flag.Arg(0); cmd {
	case "load":
		if flag.NArg() < 2 {
			sugar.Fatalw("load: missing file")
		}
		err = load(ctx, c, flag.Arg(1), *workers, logger)
	case "count":
		err = count(ctx, c)
	case "page":
		var n int64
		n, err = strconv.ParseInt(flag.Arg(1), 10, 64)
		if err == nil {
			err = page(ctx, c, n)
		}
	case "range":
		err = rangePage(ctx, c, *cursor, *desc, *maxRows)
	case "compute":
		var gen uint64
		gen, err = c.ComputePages(ctx)
		if err == nil {
			fmt.Printf("pass %d started\n", gen)
		}
	case "check":
		err = NewChecker(c, logger).Check(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		sugar.Fatalw(flag.Arg(0), "error", err)
	}
}

func count(ctx context.Context, c *client.GRPCClient) error {
	n, ok, err := c.PageCount(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("null")
		return nil
	}
	fmt.Println(n)
	return nil
}

func page(ctx context.Context, c *client.GRPCClient, n int64) error {
	docs, err := c.PageOfWords(ctx, n)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Printf("%s\t%s\n", d.ID, d.Word())
	}
	return nil
}

func rangePage(ctx context.Context, c *client.GRPCClient, cursor string, desc bool, maxRows int) error {
	start, err := grpcproto.DecodeCursor(cursor)
	if err != nil {
		return err
	}
	req := paging.Request{Start: start, MaxRows: maxRows, Direction: keys.Ascending}
	if desc {
		req.Direction = keys.Descending
	}

	p, err := c.Range(ctx, req)
	if err != nil {
		return err
	}
	for _, d := range p.Documents {
		fmt.Printf("%s\t%s\n", d.ID, d.Word())
	}
	if p.HasMore {
		fmt.Printf("more: -cursor %s\n", grpcproto.EncodeCursor(p.Last))
	}
	return nil
}

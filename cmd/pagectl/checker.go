package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/client"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/paging"
)

const checkBatch = 500

var errMismatch = errors.New("pages do not match the collection")

// Checker compares the concatenated pages with a cursor walk of the whole collection.
// Writes racing the check show up as mismatches.
type Checker struct {
	client *client.GRPCClient
	sugar  *zap.SugaredLogger
}

func NewChecker(c *client.GRPCClient, logger *zap.Logger) *Checker {
	return &Checker{client: c, sugar: logger.Sugar()}
}

func (c *Checker) Check(ctx context.Context) error {
	count, ok, err := c.client.PageCount(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("pages were never computed")
	}

	var fromPages []string
	for i := int64(0); i < count; i++ {
		docs, err := c.client.PageOfWords(ctx, i)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		c.sugar.Debugw("page", "index", i, "rows", len(docs))
		for _, d := range docs {
			fromPages = append(fromPages, d.ID)
		}
	}

	var fromScan []string
	var cursor keys.IndexKey
	for {
		p, err := c.client.Range(ctx, paging.Request{Start: cursor, Direction: keys.Ascending, MaxRows: checkBatch})
		if err != nil {
			return fmt.Errorf("range: %w", err)
		}
		for _, d := range p.Documents {
			fromScan = append(fromScan, d.ID)
		}
		if !p.HasMore {
			break
		}
		cursor = p.Last
	}

	if len(fromPages) != len(fromScan) {
		return fmt.Errorf("%w: %d paged, %d scanned", errMismatch, len(fromPages), len(fromScan))
	}
	for i := range fromPages {
		if fromPages[i] != fromScan[i] {
			return fmt.Errorf("%w: row %d is %s in pages, %s in scan", errMismatch, i, fromPages[i], fromScan[i])
		}
	}

	fmt.Printf("ok: %d pages, %d rows\n", count, len(fromScan))
	return nil
}

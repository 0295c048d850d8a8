// Package boundary persists the page boundary table and the maintenance pass lease
package boundary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/S0me0neR0man/pagestash/internal/keys"
)

var (
	// ErrLeaseHeld another pass is running and its heartbeat is fresh
	ErrLeaseHeld = errors.New("pass lease held")
	// ErrLeaseLost the generation is not the running one
	ErrLeaseLost = errors.New("pass lease lost")
)

// PageBoundary the keys delimiting one page: StartKey exclusive, EndKey inclusive,
// an empty key is unbounded
type PageBoundary struct {
	PageIndex int64
	StartKey  keys.IndexKey
	EndKey    keys.IndexKey
}

func (b PageBoundary) String() string {
	return fmt.Sprintf("page %d (%s, %s]", b.PageIndex, b.StartKey, b.EndKey)
}

// Lease guards the boundary table against overlapping passes
type Lease struct {
	Generation uint64
	Running    bool
	Heartbeat  time.Time
}

// expired reports whether a new pass may take over at now
func (l Lease) expired(now time.Time, ttl time.Duration) bool {
	return !l.Running || now.Sub(l.Heartbeat) > ttl
}

// Store the page boundary table
type Store interface {
	Get(ctx context.Context, pageIndex int64) (PageBoundary, bool, error)
	// Put inserts or replaces the boundary of b.PageIndex
	Put(ctx context.Context, b PageBoundary) error
	// PatchStart sets the start key of an existing boundary, false if absent
	PatchStart(ctx context.Context, pageIndex int64, start keys.IndexKey) (bool, error)
	// DeleteAbove removes every boundary with a greater page index, -1 removes all
	DeleteAbove(ctx context.Context, pageIndex int64) (int, error)
	// Count is the greatest page index + 1, false when the table is empty
	Count(ctx context.Context) (int64, bool, error)
	// List returns all boundaries by page index
	List(ctx context.Context) ([]PageBoundary, error)

	// BeginPass starts a new generation unless a live pass holds the lease
	BeginPass(ctx context.Context, now time.Time, ttl time.Duration) (uint64, error)
	Heartbeat(ctx context.Context, generation uint64, now time.Time) error
	EndPass(ctx context.Context, generation uint64) error
	Lease(ctx context.Context) (Lease, error)

	Close() error
}

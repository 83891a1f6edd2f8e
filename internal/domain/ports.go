package domain

import (
	"context"
	"time"
)

// CounterStore is the durable source of truth for visits.
type CounterStore interface {
	// Insert appends one visit atomically.
	Insert(ctx context.Context, clientAddress string) error
	// Count returns the number of visits at the time of the call.
	Count(ctx context.Context) (int64, error)
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// VisitLister is implemented by stores able to return recorded visits.
type VisitLister interface {
	// List returns at most limit visits, newest first.
	List(ctx context.Context, limit int) ([]Visit, error)
}

// CacheLayer is a best-effort holder of the visit count.
//
// Implementations never return errors: an unreachable cache behaves like an
// empty one, and failed writes are dropped.
type CacheLayer interface {
	Get(ctx context.Context) (int64, bool)
	Set(ctx context.Context, value int64, ttl time.Duration)
	Invalidate(ctx context.Context)
}

// SnapshotReader is implemented by caches able to expose the full snapshot,
// not just its value.
type SnapshotReader interface {
	Peek(ctx context.Context) (Snapshot, bool)
}

// WritePolicy selects how a recorded visit is reflected in the cache.
type WritePolicy string

const (
	// WritePolicyInvalidate deletes the cached value after every insert.
	WritePolicyInvalidate WritePolicy = "invalidate"
	// WritePolicyRecompute recounts from the store and rewrites the cache
	// after every insert.
	WritePolicyRecompute WritePolicy = "recompute"
)

// ParseWritePolicy validates a policy name.
func ParseWritePolicy(s string) (WritePolicy, bool) {
	switch WritePolicy(s) {
	case WritePolicyInvalidate:
		return WritePolicyInvalidate, true
	case WritePolicyRecompute:
		return WritePolicyRecompute, true
	default:
		return "", false
	}
}

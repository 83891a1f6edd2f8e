// Package cache turns an error-returning cache backend into the best-effort
// domain.CacheLayer used by the coordinator.
//
// Every backend call is bounded by a timeout and guarded by a circuit breaker.
// Failures are logged as ErrCacheDegraded and reported as a miss or a no-op;
// they never reach the caller.
package cache

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/visits/internal/domain"
)

// Backend stores a single snapshot under a well-known key.
type Backend interface {
	// Name identifies the backend in logs and metrics ("redis", "memory").
	Name() string
	// Load returns the snapshot, or ok=false when absent or expired.
	Load(ctx context.Context) (snap domain.Snapshot, ok bool, err error)
	// Store writes the snapshot with the given TTL.
	Store(ctx context.Context, snap domain.Snapshot, ttl time.Duration) error
	// Delete removes the snapshot. Deleting a missing key is not an error.
	Delete(ctx context.Context) error
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

// Observer receives one event per cache operation.
// op is "get", "set" or "invalidate"; result is "hit", "miss", "ok", "error"
// or "skipped".
type Observer interface {
	CacheOp(op, result string)
}

const (
	opGet        = "get"
	opSet        = "set"
	opInvalidate = "invalidate"

	resultHit      = "hit"
	resultMiss     = "miss"
	resultOK       = "ok"
	resultError    = "error"
	resultSkipped  = "skipped"
	resultCanceled = "canceled"
)

// Disabled is a CacheLayer that never holds anything. Every read falls
// through to the store.
type Disabled struct{}

var _ domain.CacheLayer = Disabled{}

func (Disabled) Get(context.Context) (int64, bool) { return 0, false }

func (Disabled) Set(context.Context, int64, time.Duration) {}

func (Disabled) Invalidate(context.Context) {}

func (Disabled) Peek(context.Context) (domain.Snapshot, bool) { return domain.Snapshot{}, false }

// Package coordinator implements the cache-aside policy between the durable
// counter store and the best-effort cache.
//
// The value returned by OnVisitsQueried is either freshly counted from the
// store or a snapshot that was exact no longer than the TTL ago.
//
// Write path, after a successful insert:
//
//	invalidate: cache.Invalidate                 Warm/Stale -> Cold
//	recompute:  store.Count then cache.Set       -> Warm
//
// Read path:
//
//	cache hit   -> return it, no store access
//	cache miss  -> store.Count, cache.Set, return the fresh count
//
// The coordinator holds no mutable state. Two concurrent cold reads may both
// count and both populate the cache; the last write wins.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	vcache "github.com/MrSnakeDoc/visits/internal/cache"
	"github.com/MrSnakeDoc/visits/internal/domain"
	"github.com/MrSnakeDoc/visits/internal/logger"
)

// DefaultStoreTimeout bounds a single store call when the caller context has
// no earlier deadline.
const DefaultStoreTimeout = 3 * time.Second

// Config is fixed for the lifetime of the coordinator.
type Config struct {
	Policy       domain.WritePolicy
	TTL          time.Duration
	StoreTimeout time.Duration
}

// Coordinator applies the configured write policy and the read-through path.
type Coordinator struct {
	store  domain.CounterStore
	cache  domain.CacheLayer
	logger logger.Logger
	cfg    Config
}

// New validates cfg and builds a coordinator. A nil cache behaves as an
// always-empty one.
func New(store domain.CounterStore, cache domain.CacheLayer, log logger.Logger, cfg Config) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("coordinator: store is required")
	}
	if _, ok := domain.ParseWritePolicy(string(cfg.Policy)); !ok {
		return nil, fmt.Errorf("coordinator: unknown write policy %q", cfg.Policy)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("coordinator: cache TTL must be > 0, got %v", cfg.TTL)
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cache == nil {
		cache = vcache.Disabled{}
	}

	return &Coordinator{store: store, cache: cache, logger: log, cfg: cfg}, nil
}

// OnVisitRecorded reflects a successful insert in the cache. It never fails:
// only the insert is load-bearing.
func (c *Coordinator) OnVisitRecorded(ctx context.Context) {
	switch c.cfg.Policy {
	case domain.WritePolicyInvalidate:
		c.cache.Invalidate(ctx)

	case domain.WritePolicyRecompute:
		count, err := c.count(ctx)
		if err != nil {
			// Without a fresh count the cached value is known to be behind.
			c.logger.Warn("recount after visit failed, invalidating cache",
				logger.Error(err))
			c.cache.Invalidate(ctx)
			return
		}
		c.cache.Set(ctx, count, c.cfg.TTL)
	}
}

// OnVisitsQueried returns the cached count on a hit; on a miss it counts from
// the store and repopulates the cache. Store errors propagate.
func (c *Coordinator) OnVisitsQueried(ctx context.Context) (int64, error) {
	if v, ok := c.cache.Get(ctx); ok {
		return v, nil
	}
	return c.Refresh(ctx)
}

// Refresh counts from the store and writes the result to the cache. On store
// failure the cache is left untouched.
func (c *Coordinator) Refresh(ctx context.Context) (int64, error) {
	count, err := c.count(ctx)
	if err != nil {
		return 0, err
	}
	c.cache.Set(ctx, count, c.cfg.TTL)
	return count, nil
}

// Reset drops the cached value and repopulates it from the store.
func (c *Coordinator) Reset(ctx context.Context) (int64, error) {
	c.cache.Invalidate(ctx)
	return c.Refresh(ctx)
}

// Snapshot returns what the cache currently holds without touching the store.
// ok is false when the cache is empty or cannot expose snapshots.
func (c *Coordinator) Snapshot(ctx context.Context) (domain.Snapshot, bool) {
	r, ok := c.cache.(domain.SnapshotReader)
	if !ok {
		if v, hit := c.cache.Get(ctx); hit {
			return domain.Snapshot{Value: v}, true
		}
		return domain.Snapshot{}, false
	}
	return r.Peek(ctx)
}

func (c *Coordinator) count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()

	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, domain.StoreFailure(err)
	}
	return n, nil
}

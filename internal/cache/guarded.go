package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/visits/internal/domain"
	"github.com/MrSnakeDoc/visits/internal/logger"
)

const (
	// DefaultTimeout bounds a single cache call.
	DefaultTimeout = 200 * time.Millisecond
	// DefaultBreakerThreshold is the number of consecutive failures that
	// opens the breaker.
	DefaultBreakerThreshold = 5
	// DefaultBreakerCooldown is how long the breaker stays open.
	DefaultBreakerCooldown = 10 * time.Second
)

// Options configures a Guarded cache.
type Options struct {
	Timeout          time.Duration    // per call, default 200ms
	BreakerThreshold int              // 0 => default, < 0 => breaker disabled
	BreakerCooldown  time.Duration    // default 10s
	Now              func() time.Time // for testing, defaults to time.Now
	Observer         Observer         // optional
}

// Guarded adapts a Backend into a domain.CacheLayer.
type Guarded struct {
	backend  Backend
	logger   logger.Logger
	timeout  time.Duration
	breaker  *breaker
	now      func() time.Time
	observer Observer
	gen      atomic.Uint64
}

var (
	_ domain.CacheLayer     = (*Guarded)(nil)
	_ domain.SnapshotReader = (*Guarded)(nil)
)

// NewGuarded wraps backend with timeout, circuit breaker and logging.
func NewGuarded(backend Backend, log logger.Logger, opts Options) *Guarded {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = DefaultBreakerThreshold
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = DefaultBreakerCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Guarded{
		backend:  backend,
		logger:   logger.With(log, logger.String("cache", backend.Name())),
		timeout:  opts.Timeout,
		breaker:  newBreaker(opts.BreakerThreshold, opts.BreakerCooldown, opts.Now),
		now:      opts.Now,
		observer: opts.Observer,
	}
}

// Get returns the cached count. Unreachable, expired and absent all read as a
// miss.
func (g *Guarded) Get(ctx context.Context) (int64, bool) {
	snap, ok := g.load(ctx, opGet)
	return snap.Value, ok
}

// Peek returns the whole cached snapshot.
func (g *Guarded) Peek(ctx context.Context) (domain.Snapshot, bool) {
	return g.load(ctx, opGet)
}

// Set writes value with ttl. Failures are logged and dropped.
func (g *Guarded) Set(ctx context.Context, value int64, ttl time.Duration) {
	if !g.breaker.allow() {
		g.observe(opSet, resultSkipped)
		return
	}

	now := g.now()
	snap := domain.Snapshot{
		Value:      value,
		Generation: g.gen.Add(1),
		WrittenAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.backend.Store(callCtx, snap, ttl); err != nil {
		g.fail(ctx, opSet, err)
		return
	}
	g.breaker.success()
	g.observe(opSet, resultOK)
}

// Invalidate deletes the cached value. Failures are logged and dropped.
func (g *Guarded) Invalidate(ctx context.Context) {
	if !g.breaker.allow() {
		g.observe(opInvalidate, resultSkipped)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.backend.Delete(callCtx); err != nil {
		g.fail(ctx, opInvalidate, err)
		return
	}
	g.breaker.success()
	g.observe(opInvalidate, resultOK)
}

// Probe pings the backend, bypassing the breaker. Used by readiness checks.
func (g *Guarded) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.backend.Ping(ctx)
}

func (g *Guarded) load(ctx context.Context, op string) (domain.Snapshot, bool) {
	if !g.breaker.allow() {
		g.observe(op, resultSkipped)
		return domain.Snapshot{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	snap, ok, err := g.backend.Load(callCtx)
	if err != nil {
		g.fail(ctx, op, err)
		return domain.Snapshot{}, false
	}
	g.breaker.success()

	if !ok || snap.Expired(g.now()) {
		g.observe(op, resultMiss)
		return domain.Snapshot{}, false
	}
	g.observe(op, resultHit)
	return snap, true
}

// fail records a failed backend call. A call the caller abandoned says nothing
// about the backend and is not held against the breaker.
func (g *Guarded) fail(caller context.Context, op string, err error) {
	if caller.Err() != nil {
		g.observe(op, resultCanceled)
		g.logger.Debug("cache operation abandoned by caller",
			logger.String("op", op),
			logger.Error(err))
		g.breaker.release()
		return
	}

	g.observe(op, resultError)
	g.logger.Warn("cache operation failed, falling back",
		logger.String("op", op),
		logger.Error(err),
		logger.String("kind", domain.ErrCacheDegraded.Error()))

	if g.breaker.failure() {
		g.logger.Error("cache circuit breaker opened",
			logger.Duration("cooldown", g.breaker.cooldown))
	}
}

func (g *Guarded) observe(op, result string) {
	if g.observer != nil {
		g.observer.CacheOp(op, result)
	}
}

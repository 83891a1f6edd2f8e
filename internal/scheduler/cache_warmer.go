package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/visits/internal/logger"
)

// Refresher recounts visits and rewrites the cached count.
type Refresher interface {
	RefreshCache(ctx context.Context) (int64, error)
}

// CacheWarmer keeps the visit count cache populated so the first reader after
// a restart or an expiry does not pay for the count.
type CacheWarmer struct {
	refresher     Refresher
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewCacheWarmer creates a warmer. interval <= 0 only warms at startup and on
// manual triggers.
func NewCacheWarmer(
	refresher Refresher,
	log logger.Logger,
	interval time.Duration,
) *CacheWarmer {
	return &CacheWarmer{
		refresher:     refresher,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start warms the cache once, then keeps warming it in the background until
// ctx is done or Stop is called. A failed warm-up is not fatal: readers fall
// back to the store.
func (cw *CacheWarmer) Start(ctx context.Context) {
	if _, err := cw.Warm(ctx); err != nil {
		cw.logger.Warn("initial cache warm-up failed",
			logger.Error(err))
	}

	go func() {
		var tick <-chan time.Time
		if cw.interval > 0 {
			ticker := time.NewTicker(cw.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				if _, err := cw.Warm(ctx); err != nil {
					cw.logger.Error("cache warm-up failed",
						logger.Error(err))
				}
			case <-cw.manualTrigger:
				cw.logger.Info("manual cache warm-up triggered")
				if _, err := cw.Warm(ctx); err != nil {
					cw.logger.Error("cache warm-up failed",
						logger.Error(err))
				}
			case <-cw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger asks for a warm-up without waiting for it. Triggers coalesce while
// one is pending.
func (cw *CacheWarmer) Trigger() {
	select {
	case cw.manualTrigger <- struct{}{}:
	default:
	}
}

// Stop stops the background loop. Safe to call more than once.
func (cw *CacheWarmer) Stop() {
	cw.stopOnce.Do(func() { close(cw.stopCh) })
}

// Warm recounts visits and rewrites the cache.
func (cw *CacheWarmer) Warm(ctx context.Context) (int64, error) {
	n, err := cw.refresher.RefreshCache(ctx)
	if err != nil {
		return 0, err
	}
	cw.logger.Debug("visit count cache warmed",
		logger.Int64("count", n))
	return n, nil
}

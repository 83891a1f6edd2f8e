// Package service is the public facade of the visit counter: the HTTP layer
// only talks to Service.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/visits/internal/coordinator"
	"github.com/MrSnakeDoc/visits/internal/domain"
	"github.com/MrSnakeDoc/visits/internal/logger"
)

// MaxRecentVisits caps RecentVisits.
const MaxRecentVisits = 100

// Options configures the facade.
type Options struct {
	// DevMode short-circuits every operation: nothing touches the store or
	// the cache and GetVisitCount reports domain.DevModeCount.
	DevMode bool

	// StoreTimeout bounds the insert. Defaults to coordinator.DefaultStoreTimeout.
	StoreTimeout time.Duration
}

// Service records visits and reports their count.
type Service struct {
	store        domain.CounterStore
	coord        *coordinator.Coordinator
	logger       logger.Logger
	devMode      bool
	storeTimeout time.Duration
}

// New builds the facade. store and coord must share the same CounterStore.
func New(store domain.CounterStore, coord *coordinator.Coordinator, log logger.Logger, opts Options) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = coordinator.DefaultStoreTimeout
	}
	return &Service{
		store:        store,
		coord:        coord,
		logger:       log,
		devMode:      opts.DevMode,
		storeTimeout: opts.StoreTimeout,
	}
}

// DevMode reports whether the service is short-circuited.
func (s *Service) DevMode() bool { return s.devMode }

// RecordVisit durably records one visit from clientAddress, then lets the
// coordinator update the cache. The insert happens first so a crash in between
// leaves the cache merely stale.
//
// A canceled ctx does not roll back an insert that already reached the store.
func (s *Service) RecordVisit(ctx context.Context, clientAddress string) error {
	if s.devMode {
		return nil
	}

	clientAddress = strings.TrimSpace(clientAddress)
	if clientAddress == "" {
		return fmt.Errorf("%w: client address is empty", domain.ErrInvalidInput)
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err := s.store.Insert(insertCtx, clientAddress)
	cancel()
	if err != nil {
		s.logger.Error("failed to record visit",
			logger.String("client_address", clientAddress),
			logger.Error(err))
		return domain.StoreFailure(err)
	}

	// The row is committed; the cache must follow even if the caller is gone.
	s.coord.OnVisitRecorded(context.WithoutCancel(ctx))
	return nil
}

// GetVisitCount returns the number of recorded visits, from the cache when it
// holds a snapshot younger than the TTL, from the store otherwise.
func (s *Service) GetVisitCount(ctx context.Context) (int64, error) {
	if s.devMode {
		return domain.DevModeCount, nil
	}
	return s.coord.OnVisitsQueried(ctx)
}

// RefreshCache recounts from the store and rewrites the cache.
func (s *Service) RefreshCache(ctx context.Context) (int64, error) {
	if s.devMode {
		return domain.DevModeCount, nil
	}
	return s.coord.Refresh(ctx)
}

// ResetCache drops the cached count and repopulates it.
func (s *Service) ResetCache(ctx context.Context) (int64, error) {
	if s.devMode {
		return domain.DevModeCount, nil
	}
	n, err := s.coord.Reset(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("visit count cache reset", logger.Int64("count", n))
	return n, nil
}

// CachedCount returns the cache content without touching the store.
func (s *Service) CachedCount(ctx context.Context) (domain.Snapshot, bool) {
	if s.devMode {
		return domain.Snapshot{}, false
	}
	return s.coord.Snapshot(ctx)
}

// RecentVisits returns up to limit visits, newest first. A limit outside
// (0, MaxRecentVisits] means MaxRecentVisits. Dev mode has nothing to list.
func (s *Service) RecentVisits(ctx context.Context, limit int) ([]domain.Visit, error) {
	if s.devMode {
		return []domain.Visit{}, nil
	}
	lister, ok := s.store.(domain.VisitLister)
	if !ok {
		return nil, fmt.Errorf("list visits: %w", errors.ErrUnsupported)
	}
	if limit <= 0 || limit > MaxRecentVisits {
		limit = MaxRecentVisits
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	visits, err := lister.List(ctx, limit)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
		return nil, domain.StoreFailure(err)
	}
	return visits, nil
}

// Ping checks the store is reachable. Dev mode is always ready.
func (s *Service) Ping(ctx context.Context) error {
	if s.devMode {
		return nil
	}
	return domain.StoreFailure(s.store.Ping(ctx))
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/visits/internal/domain"
)

// InstrumentedStore records latency and outcome of every CounterStore call.
type InstrumentedStore struct {
	next    domain.CounterStore
	metrics *Metrics
}

var (
	_ domain.CounterStore = (*InstrumentedStore)(nil)
	_ domain.VisitLister  = (*InstrumentedStore)(nil)
)

// InstrumentStore wraps next. A nil Metrics returns next unchanged.
func InstrumentStore(next domain.CounterStore, m *Metrics) domain.CounterStore {
	if m == nil {
		return next
	}
	return &InstrumentedStore{next: next, metrics: m}
}

func (s *InstrumentedStore) Insert(ctx context.Context, clientAddress string) error {
	start := time.Now()
	err := s.next.Insert(ctx, clientAddress)
	s.metrics.StoreOp("insert", err, time.Since(start))
	return err
}

func (s *InstrumentedStore) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.next.Count(ctx)
	s.metrics.StoreOp("count", err, time.Since(start))
	return n, err
}

// List delegates to the wrapped store when it can list visits.
func (s *InstrumentedStore) List(ctx context.Context, limit int) ([]domain.Visit, error) {
	lister, ok := s.next.(domain.VisitLister)
	if !ok {
		return nil, fmt.Errorf("list visits: %w", errors.ErrUnsupported)
	}
	start := time.Now()
	visits, err := lister.List(ctx, limit)
	s.metrics.StoreOp("list", err, time.Since(start))
	return visits, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/visits/internal/cache"
	"github.com/MrSnakeDoc/visits/internal/coordinator"
	"github.com/MrSnakeDoc/visits/internal/domain"
	"github.com/MrSnakeDoc/visits/internal/logger"
)

// memStore is a CounterStore keeping visits in a slice and counting calls.
type memStore struct {
	mu      sync.Mutex
	visits  []string
	inserts int
	counts  int
	fail    error
}

func (s *memStore) Insert(_ context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.fail != nil {
		return s.fail
	}
	s.visits = append(s.visits, addr)
	return nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	if s.fail != nil {
		return 0, s.fail
	}
	return int64(len(s.visits)), nil
}

func (s *memStore) List(_ context.Context, limit int) ([]domain.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	var out []domain.Visit
	for i := len(s.visits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, domain.Visit{ID: int64(i + 1), ClientAddress: s.visits[i]})
	}
	return out, nil
}

func (s *memStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *memStore) CountCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func (s *memStore) InsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

func (s *memStore) SetFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// failingBackend rejects every cache call.
type failingBackend struct {
	mu    sync.Mutex
	calls int
}

func (b *failingBackend) Name() string { return "failing" }

func (b *failingBackend) record() error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return errors.New("cache down")
}

func (b *failingBackend) Load(context.Context) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, b.record()
}

func (b *failingBackend) Store(context.Context, domain.Snapshot, time.Duration) error {
	return b.record()
}

func (b *failingBackend) Delete(context.Context) error { return b.record() }

func (b *failingBackend) Ping(context.Context) error { return b.record() }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *Service
	store *memStore
	cache *cache.Guarded
	clock *fakeClock
}

func newFixture(t *testing.T, policy domain.WritePolicy, ttl time.Duration, backend cache.Backend, opts Options) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	if backend == nil {
		backend = cache.NewMemory(clock.Now)
	}
	store := &memStore{}
	guarded := cache.NewGuarded(backend, logger.Nop(), cache.Options{Now: clock.Now, BreakerThreshold: -1})

	coord, err := coordinator.New(store, guarded, logger.Nop(), coordinator.Config{Policy: policy, TTL: ttl})
	require.NoError(t, err)

	return &fixture{
		svc:   New(store, coord, logger.Nop(), opts),
		store: store,
		cache: guarded,
		clock: clock,
	}
}

func TestGetVisitCount_IdempotentRead(t *testing.T) {
	for _, policy := range []domain.WritePolicy{domain.WritePolicyInvalidate, domain.WritePolicyRecompute} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, policy, time.Minute, nil, Options{})
			ctx := context.Background()
			require.NoError(t, f.svc.RecordVisit(ctx, "1.2.3.4"))

			first, err := f.svc.GetVisitCount(ctx)
			require.NoError(t, err)
			second, err := f.svc.GetVisitCount(ctx)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Equal(t, int64(1), second)
		})
	}
}

func TestRecordVisit_RecomputeIsVisibleFromCache(t *testing.T) {
	f := newFixture(t, domain.WritePolicyRecompute, time.Minute, nil, Options{})
	ctx := context.Background()

	_, err := f.svc.GetVisitCount(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.RecordVisit(ctx, "1.2.3.4"))
	countsAfterWrite := f.store.CountCalls()

	v, err := f.svc.GetVisitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, countsAfterWrite, f.store.CountCalls(), "read must be served from cache")
}

func TestRecordVisit_InvalidateForcesOneCount(t *testing.T) {
	f := newFixture(t, domain.WritePolicyInvalidate, time.Minute, nil, Options{})
	ctx := context.Background()

	v, err := f.svc.GetVisitCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), v)

	require.NoError(t, f.svc.RecordVisit(ctx, "1.2.3.4"))
	before := f.store.CountCalls()

	v, err = f.svc.GetVisitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, before+1, f.store.CountCalls())

	// Warm again: no further count.
	_, err = f.svc.GetVisitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, f.store.CountCalls())
}

func TestRecordVisit_CallerCanceledAfterInsert(t *testing.T) {
	for _, policy := range []domain.WritePolicy{domain.WritePolicyInvalidate, domain.WritePolicyRecompute} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, policy, time.Minute, nil, Options{})

			v, err := f.svc.GetVisitCount(context.Background())
			require.NoError(t, err)
			require.Equal(t, int64(0), v)

			// The client went away once the row was written.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			require.NoError(t, f.svc.RecordVisit(ctx, "1.2.3.4"))
			require.Equal(t, 1, f.store.InsertCalls())

			v, err = f.svc.GetVisitCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(1), v, "cache must not keep the pre-insert count")
		})
	}
}

func TestCacheFailureIsTransparent(t *testing.T) {
	for _, policy := range []domain.WritePolicy{domain.WritePolicyInvalidate, domain.WritePolicyRecompute} {
		t.Run(string(policy), func(t *testing.T) {
			backend := &failingBackend{}
			f := newFixture(t, policy, time.Minute, backend, Options{})
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				require.NoError(t, f.svc.RecordVisit(ctx, "10.0.0.1"))
			}

			before := f.store.CountCalls()
			for i := 0; i < 2; i++ {
				v, err := f.svc.GetVisitCount(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(3), v)
			}
			assert.Equal(t, before+2, f.store.CountCalls(), "every read falls through to the store")
			assert.Positive(t, backend.calls)
		})
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	for _, policy := range []domain.WritePolicy{domain.WritePolicyInvalidate, domain.WritePolicyRecompute} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, policy, time.Minute, nil, Options{})
			ctx := context.Background()

			f.cache.Set(ctx, 41, time.Minute)
			f.store.SetFail(errors.New("connection refused"))

			err := f.svc.RecordVisit(ctx, "1.2.3.4")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

			snap, ok := f.cache.Peek(ctx)
			require.True(t, ok, "failed insert must not touch the cache")
			assert.Equal(t, int64(41), snap.Value)
			assert.Equal(t, uint64(1), snap.Generation)

			f.cache.Invalidate(ctx)
			_, err = f.svc.GetVisitCount(ctx)
			assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
			_, ok = f.cache.Get(ctx)
			assert.False(t, ok, "failed count must not populate the cache")

			assert.ErrorIs(t, f.svc.Ping(ctx), domain.ErrStoreUnavailable)
		})
	}
}

func TestDevModeShortCircuits(t *testing.T) {
	backend := &failingBackend{}
	f := newFixture(t, domain.WritePolicyRecompute, time.Minute, backend, Options{DevMode: true})
	ctx := context.Background()

	require.NoError(t, f.svc.RecordVisit(ctx, "1.2.3.4"))
	require.NoError(t, f.svc.RecordVisit(ctx, ""))

	v, err := f.svc.GetVisitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)

	v, err = f.svc.ResetCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DevModeCount, v)

	_, ok := f.svc.CachedCount(ctx)
	assert.False(t, ok)
	assert.NoError(t, f.svc.Ping(ctx))
	assert.True(t, f.svc.DevMode())

	assert.Equal(t, 0, f.store.InsertCalls())
	assert.Equal(t, 0, f.store.CountCalls())
	assert.Equal(t, 0, backend.calls)
}

func TestRecordVisit_RejectsEmptyAddress(t *testing.T) {
	f := newFixture(t, domain.WritePolicyInvalidate, time.Minute, nil, Options{})

	for _, addr := range []string{"", "   "} {
		err := f.svc.RecordVisit(context.Background(), addr)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
	assert.Equal(t, 0, f.store.InsertCalls())
}

func TestScenario_ThreeVisitsThenTTLExpiry(t *testing.T) {
	f := newFixture(t, domain.WritePolicyRecompute, 300*time.Second, nil, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.RecordVisit(ctx, "1.2.3.4"))
	}

	v, err := f.svc.GetVisitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	before := f.store.CountCalls()
	f.clock.Advance(301 * time.Second)

	v, err = f.svc.GetVisitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, before+1, f.store.CountCalls())
}

func TestRefreshAndResetCache(t *testing.T) {
	f := newFixture(t, domain.WritePolicyInvalidate, time.Minute, nil, Options{})
	ctx := context.Background()

	require.NoError(t, f.svc.RecordVisit(ctx, "1.2.3.4"))
	require.NoError(t, f.svc.RecordVisit(ctx, "5.6.7.8"))

	_, ok := f.svc.CachedCount(ctx)
	assert.False(t, ok)

	n, err := f.svc.RefreshCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	snap, ok := f.svc.CachedCount(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.Value)

	f.cache.Set(ctx, 999, time.Minute)
	n, err = f.svc.ResetCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	snap, ok = f.svc.CachedCount(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.Value)
}

func TestConcurrentCallers(t *testing.T) {
	f := newFixture(t, domain.WritePolicyRecompute, time.Minute, nil, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.RecordVisit(ctx, "192.168.0.1"))
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.GetVisitCount(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := f.svc.RefreshCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)
}

func TestRecentVisits(t *testing.T) {
	f := newFixture(t, domain.WritePolicyInvalidate, time.Minute, nil, Options{})
	ctx := context.Background()
	for i := 0; i < MaxRecentVisits+5; i++ {
		require.NoError(t, f.svc.RecordVisit(ctx, fmt.Sprintf("10.0.0.%d", i%250)))
	}

	tests := []struct {
		name   string
		limit  int
		want   int
		newest int64
	}{
		{name: "explicit limit", limit: 3, want: 3, newest: MaxRecentVisits + 5},
		{name: "zero means max", limit: 0, want: MaxRecentVisits, newest: MaxRecentVisits + 5},
		{name: "above max is capped", limit: 1000, want: MaxRecentVisits, newest: MaxRecentVisits + 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visits, err := f.svc.RecentVisits(ctx, tt.limit)
			require.NoError(t, err)
			require.Len(t, visits, tt.want)
			assert.Equal(t, tt.newest, visits[0].ID)
		})
	}
}

func TestRecentVisits_Errors(t *testing.T) {
	f := newFixture(t, domain.WritePolicyInvalidate, time.Minute, nil, Options{})
	f.store.SetFail(errors.New("db down"))
	_, err := f.svc.RecentVisits(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	// A store that can only count.
	countOnly := struct{ domain.CounterStore }{f.store}
	svc := New(countOnly, nil, logger.Nop(), Options{})
	_, err = svc.RecentVisits(context.Background(), 10)
	assert.ErrorIs(t, err, errors.ErrUnsupported)

	dev := New(countOnly, nil, logger.Nop(), Options{DevMode: true})
	visits, err := dev.RecentVisits(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, visits)
}

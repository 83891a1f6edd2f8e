package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/visits/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for _, ip := range []string{"1.2.3.4", "1.2.3.4", "10.0.0.7"} {
		require.NoError(t, s.Insert(ctx, ip))
	}

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestList_AssignsIDsAndTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "1.1.1.1"))
	require.NoError(t, s.Insert(ctx, "2.2.2.2"))

	visits, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, visits, 2)

	assert.Equal(t, "2.2.2.2", visits[0].ClientAddress)
	assert.Equal(t, "1.1.1.1", visits[1].ClientAddress)
	assert.Greater(t, visits[0].ID, visits[1].ID)
	assert.False(t, visits[0].CreatedAt.IsZero())
}

func TestConcurrentInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Insert(ctx, "127.0.0.1"))
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
}

func TestClosedStoreReportsUnavailable(t *testing.T) {
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.Close())

	err = s.Insert(context.Background(), "1.2.3.4")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Count(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrStoreUnavailable)
}

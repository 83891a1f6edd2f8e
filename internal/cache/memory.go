package cache

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/visits/internal/domain"
)

// Memory is an in-process Backend. Expired snapshots are dropped lazily on
// read.
type Memory struct {
	mu   sync.RWMutex
	snap *domain.Snapshot
	now  func() time.Time
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-process backend. now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}

	m.mu.RLock()
	snap := m.snap
	m.mu.RUnlock()

	if snap == nil {
		return domain.Snapshot{}, false, nil
	}
	if snap.Expired(m.now()) {
		m.mu.Lock()
		if m.snap == snap {
			m.snap = nil
		}
		m.mu.Unlock()
		return domain.Snapshot{}, false, nil
	}
	return *snap, true, nil
}

func (m *Memory) Store(ctx context.Context, snap domain.Snapshot, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl > 0 {
		snap.ExpiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.snap = &snap
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.snap = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

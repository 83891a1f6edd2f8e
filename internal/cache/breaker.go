package cache

import (
	"sync"
	"time"
)

// breaker opens after threshold consecutive failures and stays open for
// cooldown. While open, calls are skipped. After the cooldown exactly one
// trial call is let through while the others keep being skipped; its outcome
// closes or re-opens the breaker.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	trial     bool // a half-open trial call is in flight
}

func newBreaker(threshold int, cooldown time.Duration, now func() time.Time) *breaker {
	return &breaker{threshold: threshold, cooldown: cooldown, now: now}
}

// allow reports whether a call may proceed. A threshold <= 0 disables the
// breaker. Every allowed call must be followed by success, failure or
// release.
func (b *breaker) allow() bool {
	if b.threshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openUntil.IsZero() {
		return true
	}
	if b.now().Before(b.openUntil) || b.trial {
		return false
	}
	b.trial = true
	return true
}

func (b *breaker) success() {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	b.failures = 0
	b.openUntil = time.Time{}
	b.trial = false
	b.mu.Unlock()
}

// failure records a failed call and reports whether it tripped the breaker.
// A failed trial re-opens it at once.
func (b *breaker) failure() (opened bool) {
	if b.threshold <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.trial {
		b.trial = false
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		b.failures = 0
		return true
	}
	return false
}

// release ends an allowed call whose outcome says nothing about the backend,
// e.g. one abandoned by its caller. A pending trial is handed to the next
// caller.
func (b *breaker) release() {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	b.trial = false
	b.mu.Unlock()
}

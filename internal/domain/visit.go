package domain

import "time"

// Visit is one recorded /ping call.
//
// It is owned by the CounterStore: the store assigns ID and CreatedAt at insert
// time and never updates or deletes a row afterwards.
type Visit struct {
	// ID is the monotonic surrogate key.
	ID int64

	// ClientAddress is the observed client IP. Required, not validated beyond
	// being non-empty.
	ClientAddress string

	// CreatedAt is set by the store when the row is inserted.
	CreatedAt time.Time
}

// DevModeCount is returned by GetVisitCount when dev mode short-circuits the
// store and the cache.
const DevModeCount int64 = -1

// Snapshot is a cached copy of the visit count.
//
// If present and unexpired, Value equals what the store reported when the
// snapshot was written. Nothing is claimed about "now".
type Snapshot struct {
	Value      int64     `json:"value"`
	Generation uint64    `json:"generation"`
	WrittenAt  time.Time `json:"written_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Age returns how long ago the snapshot was written.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.WrittenAt.IsZero() {
		return 0
	}
	return now.Sub(s.WrittenAt)
}

// Expired reports whether the snapshot is past its TTL at now.
// A zero ExpiresAt never expires.
func (s Snapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

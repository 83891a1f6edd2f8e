package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before touching storage, e.g. for an empty
	// client address. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable wraps every CounterStore failure (connection,
	// timeout, query). Callers map it to a server error.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCacheDegraded tags cache failures in logs. It is absorbed by the
	// cache layer and never returned by the service.
	ErrCacheDegraded = errors.New("cache degraded")
)

// StoreFailure makes sure a CounterStore error carries ErrStoreUnavailable.
func StoreFailure(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/visits/internal/cache"
	"github.com/MrSnakeDoc/visits/internal/domain"
)

// CountCache stores the visit count snapshot as JSON under a single key.
type CountCache struct {
	client redis.Cmdable
	key    string
}

var _ cache.Backend = (*CountCache)(nil)

// NewCountCache creates a cache backend writing to key (DefaultCountKey when
// empty).
func NewCountCache(client redis.Cmdable, key string) *CountCache {
	if key == "" {
		key = DefaultCountKey
	}
	return &CountCache{client: client, key: key}
}

func (c *CountCache) Name() string { return "redis" }

// Key returns the key the snapshot lives under.
func (c *CountCache) Key() string { return c.key }

// Load reads the snapshot. A missing key is a miss, not an error.
func (c *CountCache) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, fmt.Errorf("failed to get cached count: %w", err)
	}
	return decodeSnapshot(data)
}

// Store writes the snapshot with SET key value EX ttl.
func (c *CountCache) Store(ctx context.Context, snap domain.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache count: %w", err)
	}
	return nil
}

// Delete removes the snapshot.
func (c *CountCache) Delete(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached count: %w", err)
	}
	return nil
}

// Ping checks the server answers.
func (c *CountCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// decodeSnapshot parses the JSON snapshot. A bare integer left by an older
// deployment has no expiry of its own and reads as a miss, so the next reader
// overwrites it with a fresh snapshot.
func decodeSnapshot(data []byte) (domain.Snapshot, bool, error) {
	if _, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		return domain.Snapshot{}, false, nil
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("failed to unmarshal cached count: %w", err)
	}
	return snap, true, nil
}

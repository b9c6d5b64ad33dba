package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// KVStore is the key-value substrate for alert-group state, suppression
// bookkeeping and statistics counters. Values are stored as JSON; TTLs are
// enforced by the store.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}) error
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Incr increments an integer counter by n and returns the new value.
	Incr(ctx context.Context, key string, n int64) (int64, error)

	// Bounded recent-groups list.
	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Sliding-window occurrence sets (flapping detection).
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error

	Expire(ctx context.Context, key string, ttl time.Duration) error

	HealthCheck(ctx context.Context) error
}

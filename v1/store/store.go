package store

import (
	"context"
	"time"
)

// Store defines the key-value primitives required for distributed locking
// and result caching. Single-key atomicity is the only guarantee asked of a
// backend; no cross-key transactions are ever used.
type Store interface {
	// SetNX stores value under key with the given TTL only if key is absent.
	// It returns true when the value was written.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get returns the value for key. The boolean reports whether the key
	// exists and is unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL, overwriting any
	// previous value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// CompareAndDelete removes key only if its current value equals
	// expected. The comparison and deletion are a single atomic operation
	// on the backend. It returns true when the key was deleted.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// CompareAndExpire resets the TTL of key only if its current value
	// equals expected. It returns true when the TTL was reset.
	CompareAndExpire(ctx context.Context, key string, expected []byte, ttl time.Duration) (bool, error)

	// Expire resets the TTL of key. It returns false if key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer counter at key and returns the
	// new value. Counters are auxiliary; core correctness never depends on
	// them.
	Incr(ctx context.Context, key string) (int64, error)
}

package ports

import (
	"context"
	"time"
)

// Store is the namespaced key-value storage the session core reads and writes.
// Get returns core.ErrNotFound on a miss. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// CompareAndDelete atomically deletes key only if it currently holds expected
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

package ticket

import (
	"context"
	"time"
)

// Store is the durable, expiring home of ticket records. Implementations
// must be linearizable per key; CompareAndSet is the sole synchronization
// primitive the state machine relies on.
type Store interface {
	// Put unconditionally writes a record with the given TTL.
	Put(ctx context.Context, id string, rec Record, ttl time.Duration) error

	// Get returns the current record, or (nil, nil) when the id is absent
	// or its TTL has elapsed.
	Get(ctx context.Context, id string) (*Record, error)

	// CompareAndSet atomically replaces the record iff the stored state
	// equals expected. Returns false (without error) when the state
	// differs or the key is gone; exactly one of N concurrent callers
	// with the same expectation can win.
	CompareAndSet(ctx context.Context, id string, expected State, rec Record, ttl time.Duration) (bool, error)
}

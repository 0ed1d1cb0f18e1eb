// Package storeinfra contains the concrete cache backend adapters. The
// public caching package wraps these behind its own Store contract; nothing
// here is imported by callers directly.
package storeinfra

import (
	"context"
	"time"
)

// Entry is the stored unit, structurally identical to the public entry type
// so the facade can convert without copying fields by hand.
type Entry struct {
	Value     any       `msgpack:"value" json:"value"`
	Tags      []string  `msgpack:"tags" json:"tags"`
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
}

// Store is the adapter contract. A zero ttl on Set means the entry only
// expires under the adapter's own housekeeping, never on a deadline.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	DeleteByTag(ctx context.Context, tag string) error
}

package caching

import (
	"context"
	"fmt"
	"time"
)

// Entry is the unit stored in a backend. Entries are immutable once written;
// a re-write for the same key replaces the entry wholesale.
type Entry struct {
	Value     any
	Tags      []string
	Timestamp time.Time
}

// Store is the backend contract the coordinator depends on. Implementations
// own TTL enforcement and storage; the coordinator never deletes entries on
// its own outside the explicit operations below.
//
// A zero ttl passed to Set means no expiry beyond whatever policy the
// backend itself applies.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error

	// DeleteByTag scans stored entries' tag sets and deletes every entry
	// carrying the tag.
	DeleteByTag(ctx context.Context, tag string) error
}

// Operation names a store operation in the generic dispatch form.
type Operation string

const (
	OpGet    Operation = "GET"
	OpSet    Operation = "SET"
	OpDelete Operation = "DELETE"
	OpHas    Operation = "HAS"
	OpClear  Operation = "CLEAR"
)

// StoreRequest is the generic dispatch form of a store call. Key is required
// for everything but CLEAR; Value, Tags, and TTL are read only by SET.
type StoreRequest struct {
	Operation Operation
	Key       string
	Value     any
	Tags      []string
	TTL       time.Duration
}

// StoreResponse carries the outcome of a dispatched call. Entry is populated
// for GET, Found for GET and HAS.
type StoreResponse struct {
	Entry Entry
	Found bool
}

// Dispatch executes a StoreRequest against a store. It behaves identically
// to calling the corresponding Store method directly. A SET request whose
// Value already is an Entry stores it as-is; any other value is wrapped into
// a fresh Entry with the request's tags.
func Dispatch(ctx context.Context, store Store, req StoreRequest) (StoreResponse, error) {
	switch req.Operation {
	case OpGet:
		entry, found, err := store.Get(ctx, req.Key)
		return StoreResponse{Entry: entry, Found: found}, err
	case OpSet:
		entry, ok := req.Value.(Entry)
		if !ok {
			entry = Entry{Value: req.Value, Tags: req.Tags, Timestamp: time.Now()}
		}
		return StoreResponse{}, store.Set(ctx, req.Key, entry, req.TTL)
	case OpDelete:
		return StoreResponse{}, store.Delete(ctx, req.Key)
	case OpHas:
		found, err := store.Has(ctx, req.Key)
		return StoreResponse{Found: found}, err
	case OpClear:
		return StoreResponse{}, store.Clear(ctx)
	default:
		return StoreResponse{}, fmt.Errorf("%w: %q", ErrUnknownOperation, req.Operation)
	}
}

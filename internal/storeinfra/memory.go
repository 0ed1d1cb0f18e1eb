package storeinfra

import (
	"context"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// MemoryConfig holds the configuration for the sturdyc-backed store.
type MemoryConfig struct {
	// Capacity is the maximum number of entries the store holds.
	// Must be greater than 0.
	Capacity int

	// NumShards determines how many shards back the store. Higher values
	// improve concurrency at the cost of memory. Must be greater than 0.
	NumShards int

	// TTL is the client-wide upper bound on entry lifetime. Per-entry
	// deadlines passed to Set are enforced on top of it. Must be greater
	// than 0.
	TTL time.Duration

	// EvictionPercentage is how much of the store to evict when capacity is
	// reached. Must be between 1 and 100.
	EvictionPercentage int

	// EarlyRefresh configures sturdyc's early refresh behavior. Nil disables
	// it.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage lets the client remember keys known to hold
	// nothing, avoiding repeated origin round trips for them.
	MissingRecordStorage bool

	// EvictionInterval overrides how often expired entries are collected.
	// Zero keeps the client default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors sturdyc's early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultMemoryConfig returns a MemoryConfig with defaults suited to a
// request cache: room for ten thousand entries and an hour-long outer bound
// so per-entry deadlines stay in charge.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// Validate checks the configuration values.
func (c MemoryConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}

	if c.EarlyRefresh != nil {
		return c.EarlyRefresh.Validate()
	}
	return nil
}

// Validate checks the early refresh timings.
func (c EarlyRefreshConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxAsyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&c.SyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&c.RetryBaseDelay, validation.Min(time.Duration(0))),
	)
}

// toSturdycOptions maps the optional configuration to sturdyc options.
// Capacity, NumShards, TTL, and EvictionPercentage go straight to the
// sturdyc constructor instead.
func (c MemoryConfig) toSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// record wraps an entry with its per-entry deadline. A zero deadline means
// the entry lives until the client-wide TTL or an explicit delete.
type record struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is the in-process adapter over a sturdyc client. sturdyc only
// supports a client-wide TTL, so per-entry deadlines are carried on each
// record and enforced lazily on read.
type MemoryStore struct {
	client *sturdyc.Client[record]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore validates the configuration and builds the store.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[record](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.toSturdycOptions()...,
	)

	return &MemoryStore{client: client}, nil
}

// Get returns the live entry for key. An expired record is deleted on the
// spot and reported as absent.
func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	rec, ok := s.live(key)
	if !ok {
		return Entry{}, false, nil
	}
	return rec.entry, true, nil
}

// Set stores the entry, replacing any previous record for the key.
func (s *MemoryStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	rec := record{entry: entry}
	if ttl > 0 {
		rec.expiresAt = time.Now().Add(ttl)
	}
	s.client.Set(key, rec)
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Has reports whether a live entry exists for key.
func (s *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok := s.live(key)
	return ok, nil
}

// Clear removes every entry.
func (s *MemoryStore) Clear(ctx context.Context) error {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	return nil
}

// DeleteByTag scans all records and deletes those whose entry carries the
// tag.
func (s *MemoryStore) DeleteByTag(ctx context.Context, tag string) error {
	for _, key := range s.client.ScanKeys() {
		rec, ok := s.client.Get(key)
		if !ok {
			continue
		}
		if slices.Contains(rec.entry.Tags, tag) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Size returns the number of records currently held, expired ones included.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}

// live fetches a record and enforces its deadline.
func (s *MemoryStore) live(key string) (record, bool) {
	rec, ok := s.client.Get(key)
	if !ok {
		return record{}, false
	}
	if !rec.expiresAt.IsZero() && time.Now().After(rec.expiresAt) {
		s.client.Delete(key)
		return record{}, false
	}
	return rec, true
}

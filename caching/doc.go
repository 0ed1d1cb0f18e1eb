// Package caching provides the building blocks of the read-through cache:
// request descriptors, deterministic key derivation, tag resolution, the
// backend contract, runtime statistics, and configuration.
//
// # Overview
//
// The package is deliberately free of orchestration. It defines what a
// cacheable request looks like (Descriptor and its three shapes), how a
// request becomes a key (KeyManager), how invalidation tags are computed
// (TagResolver and the TagSpec variants), what a backend must implement
// (Store, Entry, and the generic StoreRequest dispatch), and how hit and miss
// samples are aggregated (StatsRecorder). The readthrough package wires these
// pieces into the actual cache-aside flow.
//
// # Descriptors
//
// A Descriptor is one of three concrete shapes:
//
//	caching.ServiceCall{Service: "northwind", Method: "GET", Path: "/Books"}
//	caching.Query{Kind: caching.QuerySelect, Entity: "Books"}
//	caching.Invocation{Name: "expensive", Args: []any{42}}
//
// The set is closed: KindOf and the key and tag machinery switch over the
// three shapes, and write intent (Mutating) is derived per shape rather than
// guessed from payload contents.
//
// # Keys
//
// KeyManager.CreateKey produces "::"-separated keys from the request context,
// the descriptor target, and a content hash of the descriptor payload. The
// hash canonicalizes the payload before hashing, so two payloads that differ
// only in map iteration order produce the same key. A key template replaces
// the default layout:
//
//	keys := caching.NewKeyManager()
//	key := keys.CreateKey(d, rc, "")                      // tenant::user::...::hash
//	key = keys.CreateKey(d, rc, "books:{tenant}:{hash}")  // books:acme:9f6e...
//
// # Stores
//
// Store is the five-operation backend contract plus tag-based invalidation.
// Two implementations ship with the module: an in-process sharded store and a
// Redis-backed store, both constructed from Config via NewStore. Dispatch
// maps a StoreRequest onto the same methods for callers that marshal cache
// operations generically.
//
// # Error Handling
//
// Backend failures never escape as Go errors from the read path; the
// readthrough coordinator converts them into CacheError values on the
// response envelope. The Guarded helpers implement that conversion and also
// contain panics from misbehaving backends. Sentinel errors
// (ErrInvalidResultType, ErrUnknownOperation, ErrNilOrigin) cover the cases
// where the caller, not the backend, is at fault.
//
// # Statistics
//
// StatsRecorder aggregates hit and miss counts and latencies globally and,
// when key tracking is on, per key with write-once request metadata. Both
// toggles flip atomically at runtime; recording is lock-free on the hot
// path.
//
// # See Also
//
// The readthrough package implements the cache-aside flow on top of these
// types. The pkg/statsprom package exposes StatsRecorder snapshots as
// Prometheus metrics.
package caching

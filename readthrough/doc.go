// Package readthrough implements the cache-aside coordinator for service
// calls, structured queries, and wrapped invocations.
//
// # Overview
//
// The Coordinator sits between a request producer and its origin (a backend
// service, a query executor, or any callable) and runs the same four-stage
// algorithm for each of the three request shapes:
//
//  1. Resolve options; requests with write intent bypass caching entirely.
//  2. Derive a deterministic cache key and start the clock.
//  3. Probe the backend (has, then get) through the resilience guard. A live
//     entry is a hit: record it, set diagnostic headers, return it.
//  4. On a miss, invoke the origin directly, record the miss, resolve the
//     invalidation tags, and write the entry back through the guard.
//
// The origin is the only collaborator whose failure reaches the caller. Every
// backend and statistics call is guarded: a failing store degrades to a miss
// (or a skipped write) plus a CacheError on the envelope, and a failing
// recorder is logged and dropped entirely.
//
// # Basic Usage
//
//	store, err := caching.NewStore(caching.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	coordinator := readthrough.New(store, readthrough.WithLogger(logger))
//
//	res, err := coordinator.Run(ctx, rc, caching.Query{
//		Kind:   caching.QuerySelect,
//		Entity: "Books",
//	}, runner, &caching.Options{
//		TTL:  time.Minute,
//		Tags: caching.TagList{"books"},
//	})
//	if err != nil {
//		return err // the origin failed; the cache never produces errors here
//	}
//	_ = res.Metadata.Hit
//
// # Response Envelope
//
// Every call returns a Result carrying the value, the cache key (empty when
// caching was bypassed), the hit/miss outcome with latency, and the list of
// backend failures the call absorbed. A request only fails when the origin
// fails.
//
// # Concurrency
//
// Concurrent calls for the same not-yet-cached key each probe, miss, fetch,
// and write independently; the last write wins. WithSingleFlight opts into
// coalescing those misses into one origin call per key.
//
// # See Also
//
// Key derivation, tag resolution, statistics, and the backend contract live
// in the caching package. Process wiring lives in pkg/di.
package readthrough

package readthrough

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/uxkjaer/cds-caching/caching"
)

// Coordinator runs the cache-aside sequence for the three request shapes.
// Every backend and statistics call goes through the resilience guard, so
// the only error a coordinator call can return is the origin's own.
type Coordinator struct {
	store      caching.Store
	keys       *caching.KeyManager
	tags       *caching.TagResolver
	recorder   caching.Recorder
	logger     *zap.Logger
	defaultTTL time.Duration
	flights    *singleflight.Group
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the statistics recorder.
func WithRecorder(recorder caching.Recorder) Option {
	return func(c *Coordinator) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithDefaultTTL sets the TTL applied when per-call options carry none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		c.defaultTTL = ttl
	}
}

// WithSingleFlight coalesces concurrent misses for the same key into one
// origin call. Off by default: without it concurrent misses independently
// invoke the origin and the last write wins.
func WithSingleFlight() Option {
	return func(c *Coordinator) {
		c.flights = &singleflight.Group{}
	}
}

// New creates a Coordinator over a backend store.
func New(store caching.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		keys:     caching.NewKeyManager(),
		tags:     caching.NewTagResolver(),
		recorder: caching.NewRecorder(caching.StatisticsConfig{Enabled: true}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "readthrough"))
	return c
}

// Send runs a service call through the cache.
func (c *Coordinator) Send(ctx context.Context, rc caching.RequestContext, call caching.ServiceCall, origin ServiceOrigin, opts *caching.Options) (Result, error) {
	if origin == nil {
		return Result{}, caching.ErrNilOrigin
	}
	return c.execute(ctx, rc, call, "send", func(ctx context.Context) (any, error) {
		return origin.Send(ctx, call)
	}, opts)
}

// Run runs a structured query through the cache.
func (c *Coordinator) Run(ctx context.Context, rc caching.RequestContext, q caching.Query, runner QueryRunner, opts *caching.Options) (Result, error) {
	if runner == nil {
		return Result{}, caching.ErrNilOrigin
	}
	return c.execute(ctx, rc, q, "run", func(ctx context.Context) (any, error) {
		return runner.Run(ctx, q)
	}, opts)
}

// Wrap runs an arbitrary invocation through the cache.
func (c *Coordinator) Wrap(ctx context.Context, rc caching.RequestContext, inv caching.Invocation, fn FetchFunc, opts *caching.Options) (Result, error) {
	if fn == nil {
		return Result{}, caching.ErrNilOrigin
	}
	return c.execute(ctx, rc, inv, "wrap", fn, opts)
}

// Delete removes one entry from the backend.
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// DeleteByTag removes every entry tagged with tag.
func (c *Coordinator) DeleteByTag(ctx context.Context, tag string) error {
	return c.store.DeleteByTag(ctx, tag)
}

// Clear empties the backend.
func (c *Coordinator) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Store returns the backend, for callers that need direct access.
func (c *Coordinator) Store() caching.Store {
	return c.store
}

// Key derives the cache key a call would use, without touching the backend.
func (c *Coordinator) Key(d caching.Descriptor, rc caching.RequestContext, opts *caching.Options) string {
	resolved := caching.ResolveOptions(opts, c.defaultTTL)
	return c.keys.CreateKey(d, rc, resolved.KeyTemplate)
}

// execute is the four-stage algorithm shared by Send, Run, and Wrap.
func (c *Coordinator) execute(ctx context.Context, rc caching.RequestContext, d caching.Descriptor, operation string, origin FetchFunc, opts *caching.Options) (Result, error) {
	resolved := caching.ResolveOptions(opts, c.defaultTTL)

	// Stage 1: mutation intent bypasses caching entirely. The origin still
	// runs and its error is still the caller's error.
	if d.Mutating() {
		value, err := origin(ctx)
		if err != nil {
			c.logOriginFailure(operation, d, err)
			return Result{}, err
		}
		return Result{Value: value}, nil
	}

	// Stage 2: derive the key and start the clock.
	key := c.keys.CreateKey(d, rc, resolved.KeyTemplate)
	started := time.Now()
	md := buildKeyMetadata(operation, d, rc, resolved)

	var cacheErrors []caching.CacheError

	// Stage 3: probe the backend. A probe failure is one diagnostic entry
	// and a fall-through to the miss path, never a hard failure.
	var (
		hit   bool
		value any
	)
	found, cerr := caching.Guarded(c.logger, "has", map[string]any{"key": key}, func() (bool, error) {
		return c.store.Has(ctx, key)
	})
	if cerr != nil {
		cacheErrors = append(cacheErrors, *cerr)
	} else if found {
		type lookup struct {
			entry caching.Entry
			found bool
		}
		got, gerr := caching.Guarded(c.logger, "get", map[string]any{"key": key}, func() (lookup, error) {
			entry, ok, err := c.store.Get(ctx, key)
			return lookup{entry: entry, found: ok}, err
		})
		switch {
		case gerr != nil:
			cacheErrors = append(cacheErrors, *gerr)
		case got.found:
			hit = true
			value = got.entry.Value
		}
	}

	if hit {
		latency := time.Since(started)
		c.recordSample(true, latency, key, md)
		applyHeaders(resolved.Headers, key, true)
		c.logger.Debug("cache hit",
			zap.String("key", key),
			zap.String("operation", operation),
			zap.Duration("latency", latency),
		)
		return Result{
			Value:       value,
			CacheKey:    key,
			Metadata:    Metadata{Hit: true, Latency: latency},
			CacheErrors: cacheErrors,
		}, nil
	}

	// Stage 4: miss. The origin call is never guarded; its failure is fatal
	// and rethrown unchanged, with no cache write.
	outcome, err := c.fetchAndStore(ctx, rc, d, operation, key, started, origin, resolved, md)
	if err != nil {
		return Result{}, err
	}

	cacheErrors = append(cacheErrors, outcome.cacheErrors...)
	applyHeaders(resolved.Headers, key, false)
	c.logger.Debug("cache miss",
		zap.String("key", key),
		zap.String("operation", operation),
		zap.Duration("latency", outcome.latency),
	)
	return Result{
		Value:       outcome.value,
		CacheKey:    key,
		Metadata:    Metadata{Hit: false, Latency: outcome.latency},
		CacheErrors: cacheErrors,
	}, nil
}

// missOutcome is what one origin execution produces for every caller that
// shares it. The latency covers probe plus origin; coalesced callers report
// the executing call's value.
type missOutcome struct {
	value       any
	latency     time.Duration
	cacheErrors []caching.CacheError
}

func (c *Coordinator) fetchAndStore(ctx context.Context, rc caching.RequestContext, d caching.Descriptor, operation, key string, started time.Time, origin FetchFunc, resolved caching.Options, md *caching.KeyMetadata) (missOutcome, error) {
	if c.flights == nil {
		return c.missPath(ctx, rc, d, operation, key, started, origin, resolved, md)
	}

	shared, err, _ := c.flights.Do(key, func() (any, error) {
		outcome, err := c.missPath(ctx, rc, d, operation, key, started, origin, resolved, md)
		if err != nil {
			return nil, err
		}
		return outcome, nil
	})
	if err != nil {
		return missOutcome{}, err
	}
	return shared.(missOutcome), nil
}

func (c *Coordinator) missPath(ctx context.Context, rc caching.RequestContext, d caching.Descriptor, operation, key string, started time.Time, origin FetchFunc, resolved caching.Options, md *caching.KeyMetadata) (missOutcome, error) {
	value, err := origin(ctx)
	if err != nil {
		c.logOriginFailure(operation, d, err)
		return missOutcome{}, err
	}

	latency := time.Since(started)
	c.recordSample(false, latency, key, md)

	tags := caching.MergeTags(
		c.tags.Resolve(resolved.Tags, value, rc),
		caching.TagsFromContext(ctx),
	)
	entry := caching.Entry{Value: value, Tags: tags, Timestamp: time.Now()}

	outcome := missOutcome{value: value, latency: latency}
	if cerr := caching.GuardedDo(c.logger, "set", map[string]any{"key": key, "ttl": resolved.TTL.String()}, func() error {
		return c.store.Set(ctx, key, entry, resolved.TTL)
	}); cerr != nil {
		outcome.cacheErrors = append(outcome.cacheErrors, *cerr)
	}
	return outcome, nil
}

// recordSample feeds the statistics recorder through the guard and drops the
// outcome: a statistics failure is logged by the guard but never becomes a
// diagnostic entry.
func (c *Coordinator) recordSample(hit bool, latency time.Duration, key string, md *caching.KeyMetadata) {
	operation := "recordMiss"
	record := c.recorder.RecordMiss
	if hit {
		operation = "recordHit"
		record = c.recorder.RecordHit
	}
	caching.GuardedDo(c.logger, operation, map[string]any{"key": key}, func() error {
		return record(latency, key, md)
	})
}

func (c *Coordinator) logOriginFailure(operation string, d caching.Descriptor, err error) {
	c.logger.Error("origin call failed",
		zap.String("operation", operation),
		zap.String("kind", string(caching.KindOf(d))),
		zap.String("target", d.Target()),
		zap.Error(err),
	)
}

// buildKeyMetadata assembles the write-once diagnostic record attached to
// statistics samples.
func buildKeyMetadata(operation string, d caching.Descriptor, rc caching.RequestContext, o caching.Options) *caching.KeyMetadata {
	return &caching.KeyMetadata{
		Operation: operation,
		DataType:  string(caching.KindOf(d)),
		Tenant:    rc.Tenant,
		User:      rc.User,
		Locale:    rc.Locale,
		Target:    d.Target(),
		Subject:   subjectOf(d),
		Options:   optionsSummary(o),
	}
}

func subjectOf(d caching.Descriptor) string {
	switch v := d.(type) {
	case caching.ServiceCall:
		if v.Path != "" {
			return v.Method + " " + v.Path
		}
		return v.Event
	case caching.Query:
		return string(v.Kind) + " " + v.Entity
	case caching.Invocation:
		return fmt.Sprintf("%s/%d", v.Name, len(v.Args))
	default:
		return ""
	}
}

func optionsSummary(o caching.Options) string {
	summary := "ttl=" + o.TTL.String()
	if o.KeyTemplate != "" {
		summary += " template=" + o.KeyTemplate
	}
	return summary
}

package caching

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Recorder receives one sample per coordinator call. Implementations may
// fail; the coordinator runs every recording through the resilience guard
// and swallows the outcome, so a broken recorder can never affect a
// response.
type Recorder interface {
	RecordHit(latency time.Duration, key string, md *KeyMetadata) error
	RecordMiss(latency time.Duration, key string, md *KeyMetadata) error
}

// KeyMetadata describes the call a key was created for. It is written once
// per tracked key, on the first sample that carries it.
type KeyMetadata struct {
	Operation string `json:"operation"`
	DataType  string `json:"dataType"`
	Tenant    string `json:"tenant,omitempty"`
	User      string `json:"user,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Target    string `json:"target,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Options   string `json:"options,omitempty"`
}

// Stats is a point-in-time snapshot of the global aggregates.
type Stats struct {
	Hits           int64
	Misses         int64
	Requests       int64
	HitRatio       float64
	AvgHitLatency  time.Duration
	AvgMissLatency time.Duration
}

// KeyStats is a point-in-time snapshot of one tracked key.
type KeyStats struct {
	Key            string
	Hits           int64
	Misses         int64
	HitRatio       float64
	AvgHitLatency  time.Duration
	AvgMissLatency time.Duration
	LastAccess     time.Time
	Metadata       *KeyMetadata
}

// StatisticsConfig holds the two independently toggle-able recording flags.
type StatisticsConfig struct {
	Enabled     bool `yaml:"enabled"`
	KeyTracking bool `yaml:"keyTracking"`
}

// recorderFlags is the atomically swapped snapshot of the runtime toggles.
// Each recording call loads it exactly once.
type recorderFlags struct {
	enabled     bool
	keyTracking bool
}

// StatsRecorder is the in-process Recorder. All aggregates are O(1) atomic
// updates; per-key counters live in a concurrent map and are touched only
// when key tracking is on. Both flags can flip at runtime without restarting
// anything.
type StatsRecorder struct {
	flags atomic.Pointer[recorderFlags]

	hits        atomic.Int64
	misses      atomic.Int64
	hitLatency  atomic.Int64
	missLatency atomic.Int64

	keys *xsync.MapOf[string, *keyCounters]
}

type keyCounters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	hitLatency  atomic.Int64
	missLatency atomic.Int64
	lastAccess  atomic.Int64
	metadata    atomic.Pointer[KeyMetadata]
}

var _ Recorder = (*StatsRecorder)(nil)

// NewRecorder creates a StatsRecorder with the given initial flags.
func NewRecorder(cfg StatisticsConfig) *StatsRecorder {
	r := &StatsRecorder{
		keys: xsync.NewMapOf[string, *keyCounters](),
	}
	r.flags.Store(&recorderFlags{enabled: cfg.Enabled, keyTracking: cfg.KeyTracking})
	return r
}

// RecordHit records a cache hit. It never returns an error.
func (r *StatsRecorder) RecordHit(latency time.Duration, key string, md *KeyMetadata) error {
	r.record(true, latency, key, md)
	return nil
}

// RecordMiss records a cache miss. It never returns an error.
func (r *StatsRecorder) RecordMiss(latency time.Duration, key string, md *KeyMetadata) error {
	r.record(false, latency, key, md)
	return nil
}

func (r *StatsRecorder) record(hit bool, latency time.Duration, key string, md *KeyMetadata) {
	flags := r.flags.Load()
	if !flags.enabled {
		return
	}

	if hit {
		r.hits.Add(1)
		r.hitLatency.Add(int64(latency))
	} else {
		r.misses.Add(1)
		r.missLatency.Add(int64(latency))
	}

	if !flags.keyTracking {
		return
	}

	kc, _ := r.keys.LoadOrCompute(key, func() *keyCounters {
		return &keyCounters{}
	})
	if hit {
		kc.hits.Add(1)
		kc.hitLatency.Add(int64(latency))
	} else {
		kc.misses.Add(1)
		kc.missLatency.Add(int64(latency))
	}
	kc.lastAccess.Store(time.Now().UnixNano())
	if md != nil {
		kc.metadata.CompareAndSwap(nil, md)
	}
}

// SetEnabled toggles metrics collection at runtime.
func (r *StatsRecorder) SetEnabled(enabled bool) {
	r.swapFlags(func(f recorderFlags) recorderFlags {
		f.enabled = enabled
		return f
	})
}

// SetKeyTracking toggles per-key tracking at runtime. Turning it off keeps
// already collected key counters until Reset.
func (r *StatsRecorder) SetKeyTracking(enabled bool) {
	r.swapFlags(func(f recorderFlags) recorderFlags {
		f.keyTracking = enabled
		return f
	})
}

// Enabled reports whether metrics collection is on.
func (r *StatsRecorder) Enabled() bool {
	return r.flags.Load().enabled
}

// KeyTracking reports whether per-key tracking is on.
func (r *StatsRecorder) KeyTracking() bool {
	return r.flags.Load().keyTracking
}

func (r *StatsRecorder) swapFlags(update func(recorderFlags) recorderFlags) {
	for {
		old := r.flags.Load()
		next := update(*old)
		if r.flags.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Snapshot returns the current global aggregates.
func (r *StatsRecorder) Snapshot() Stats {
	hits := r.hits.Load()
	misses := r.misses.Load()
	return Stats{
		Hits:           hits,
		Misses:         misses,
		Requests:       hits + misses,
		HitRatio:       ratio(hits, misses),
		AvgHitLatency:  average(r.hitLatency.Load(), hits),
		AvgMissLatency: average(r.missLatency.Load(), misses),
	}
}

// KeyStats returns the snapshot for one tracked key.
func (r *StatsRecorder) KeyStats(key string) (KeyStats, bool) {
	kc, ok := r.keys.Load(key)
	if !ok {
		return KeyStats{}, false
	}
	return snapshotKey(key, kc), true
}

// Keys returns the tracked keys in lexical order.
func (r *StatsRecorder) Keys() []string {
	keys := make([]string, 0, r.keys.Size())
	r.keys.Range(func(key string, _ *keyCounters) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// AllKeyStats returns snapshots for every tracked key, in lexical key order.
func (r *StatsRecorder) AllKeyStats() []KeyStats {
	out := make([]KeyStats, 0, r.keys.Size())
	for _, key := range r.Keys() {
		if kc, ok := r.keys.Load(key); ok {
			out = append(out, snapshotKey(key, kc))
		}
	}
	return out
}

// Reset zeroes the global aggregates and drops all per-key counters.
func (r *StatsRecorder) Reset() {
	r.hits.Store(0)
	r.misses.Store(0)
	r.hitLatency.Store(0)
	r.missLatency.Store(0)
	r.keys.Clear()
}

func snapshotKey(key string, kc *keyCounters) KeyStats {
	hits := kc.hits.Load()
	misses := kc.misses.Load()
	ks := KeyStats{
		Key:            key,
		Hits:           hits,
		Misses:         misses,
		HitRatio:       ratio(hits, misses),
		AvgHitLatency:  average(kc.hitLatency.Load(), hits),
		AvgMissLatency: average(kc.missLatency.Load(), misses),
		Metadata:       kc.metadata.Load(),
	}
	if nanos := kc.lastAccess.Load(); nanos > 0 {
		ks.LastAccess = time.Unix(0, nanos)
	}
	return ks
}

func ratio(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func average(totalNanos, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(totalNanos / count)
}

// Package statsprom exposes cache statistics as Prometheus metrics.
//
// The cache keeps its own lock-free counters in caching.StatsRecorder; this
// package bridges them into a prometheus.Collector that reads a snapshot at
// scrape time instead of double-counting every request through a second set
// of counters.
package statsprom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uxkjaer/cds-caching/caching"
)

// DefaultNamespace prefixes every metric unless NewCollector is given an
// explicit namespace.
const DefaultNamespace = "cds_caching"

// Collector reads a caching.StatsRecorder snapshot on every scrape.
//
// Per-key series are emitted only while key tracking is enabled on the
// recorder. Counters reset when the recorder is reset; Prometheus handles
// that the same way it handles a process restart.
type Collector struct {
	recorder *caching.StatsRecorder

	hits           *prometheus.Desc
	misses         *prometheus.Desc
	requests       *prometheus.Desc
	hitRatio       *prometheus.Desc
	avgHitLatency  *prometheus.Desc
	avgMissLatency *prometheus.Desc

	keyHits   *prometheus.Desc
	keyMisses *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector over recorder. An empty namespace falls
// back to DefaultNamespace. The collector is not registered; callers register
// it on the registry they own.
func NewCollector(recorder *caching.StatsRecorder, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Collector{
		recorder: recorder,
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "hits_total"),
			"Total number of cache hits.",
			nil, nil,
		),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "misses_total"),
			"Total number of cache misses.",
			nil, nil,
		),
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "requests_total"),
			"Total number of cacheable requests.",
			nil, nil,
		),
		hitRatio: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "hit_ratio"),
			"Hits divided by requests, 0 when no requests were recorded.",
			nil, nil,
		),
		avgHitLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "hit_latency_avg_seconds"),
			"Mean latency of cache hits in seconds.",
			nil, nil,
		),
		avgMissLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "miss_latency_avg_seconds"),
			"Mean latency of cache misses in seconds.",
			nil, nil,
		),
		keyHits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "key_hits_total"),
			"Cache hits per key while key tracking is enabled.",
			[]string{"key"}, nil,
		),
		keyMisses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "key_misses_total"),
			"Cache misses per key while key tracking is enabled.",
			[]string{"key"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.requests
	ch <- c.hitRatio
	ch <- c.avgHitLatency
	ch <- c.avgMissLatency
	ch <- c.keyHits
	ch <- c.keyMisses
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.recorder.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(stats.Requests))
	ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, stats.HitRatio)
	ch <- prometheus.MustNewConstMetric(c.avgHitLatency, prometheus.GaugeValue, stats.AvgHitLatency.Seconds())
	ch <- prometheus.MustNewConstMetric(c.avgMissLatency, prometheus.GaugeValue, stats.AvgMissLatency.Seconds())

	if !c.recorder.KeyTracking() {
		return
	}
	for _, ks := range c.recorder.AllKeyStats() {
		ch <- prometheus.MustNewConstMetric(c.keyHits, prometheus.CounterValue, float64(ks.Hits), ks.Key)
		ch <- prometheus.MustNewConstMetric(c.keyMisses, prometheus.CounterValue, float64(ks.Misses), ks.Key)
	}
}

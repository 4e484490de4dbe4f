// Package metrics exposes admission control counters as Prometheus
// metrics.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourusername/gatekeep/pkg/gatekeep"
)

// Collector records admission control events. It implements
// gatekeep.Recorder.
type Collector struct {
	allowed  atomic.Uint64
	denied   atomic.Uint64
	failOpen atomic.Uint64
	evicted  atomic.Uint64

	requestsTotal *prometheus.CounterVec
	failOpenTotal prometheus.Counter
	evictedTotal  prometheus.Counter
	bucketCount   prometheus.Gauge

	startTime time.Time
}

var _ gatekeep.Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
// Pass prometheus.DefaultRegisterer for the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Name:      "requests_total",
			Help:      "Admission decisions by outcome.",
		}, []string{"outcome"}),
		failOpenTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Name:      "fail_open_total",
			Help:      "Requests admitted because the admission check failed.",
		}),
		evictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Name:      "buckets_evicted_total",
			Help:      "Idle buckets removed by the evictor.",
		}),
		bucketCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatekeep",
			Name:      "buckets",
			Help:      "Buckets currently held in the store.",
		}),
		startTime: time.Now(),
	}
}

// RecordAllowed records an admitted request.
func (c *Collector) RecordAllowed() {
	c.allowed.Add(1)
	c.requestsTotal.WithLabelValues("allowed").Inc()
}

// RecordDenied records a throttled request.
func (c *Collector) RecordDenied() {
	c.denied.Add(1)
	c.requestsTotal.WithLabelValues("denied").Inc()
}

// RecordFailOpen records a request admitted because the check itself
// failed.
func (c *Collector) RecordFailOpen() {
	c.failOpen.Add(1)
	c.failOpenTotal.Inc()
}

// RecordEviction records the outcome of one eviction cycle.
func (c *Collector) RecordEviction(removed, remaining int) {
	c.evicted.Add(uint64(removed))
	c.evictedTotal.Add(float64(removed))
	c.bucketCount.Set(float64(remaining))
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Allowed       uint64    `json:"allowed"`
	Denied        uint64    `json:"denied"`
	FailOpen      uint64    `json:"fail_open"`
	Evicted       uint64    `json:"evicted"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
}

// GetSnapshot returns the current counter values.
func (c *Collector) GetSnapshot() Snapshot {
	return Snapshot{
		Allowed:       c.allowed.Load(),
		Denied:        c.denied.Load(),
		FailOpen:      c.failOpen.Load(),
		Evicted:       c.evicted.Load(),
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		StartTime:     c.startTime,
	}
}

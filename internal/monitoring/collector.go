// Package monitoring - collector.go exports gateway counters to Prometheus.
//
// DESIGN: A pull-style prometheus.Collector. Values are read from the live
// sources at scrape time instead of being mirrored into prometheus counters,
// so the in-memory Stats stay the single source of truth. Cache hit/miss are
// gauges because ClearCache resets them.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assist_gateway"

// Gauges is extra point-in-time state exported alongside the counters.
type Gauges struct {
	CacheEntries     int
	QueuePending     int
	BackendAvailable bool
	RateRemaining    int
}

// Collector is a prometheus.Collector over a MetricsCollector.
type Collector struct {
	metrics *MetricsCollector
	gauges  func() Gauges

	totalCalls       *prometheus.Desc
	queueEnqueued    *prometheus.Desc
	errors           *prometheus.Desc
	cacheHits        *prometheus.Desc
	cacheMisses      *prometheus.Desc
	cacheEntries     *prometheus.Desc
	queuePending     *prometheus.Desc
	backendAvailable *prometheus.Desc
	rateRemaining    *prometheus.Desc
}

// NewCollector creates a collector. gauges may be nil.
func NewCollector(metrics *MetricsCollector, gauges func() Gauges) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		metrics:          metrics,
		gauges:           gauges,
		totalCalls:       desc("calls_total", "Gateway operations started."),
		queueEnqueued:    desc("queue_enqueued_total", "Requests deferred by the backpressure queue."),
		errors:           desc("errors_total", "Terminal gateway failures by kind.", "kind"),
		cacheHits:        desc("cache_hits", "Response cache hits since the last cache clear."),
		cacheMisses:      desc("cache_misses", "Response cache misses since the last cache clear."),
		cacheEntries:     desc("cache_entries", "Entries currently held by the response cache."),
		queuePending:     desc("queue_pending", "Requests currently waiting in the backpressure queue."),
		backendAvailable: desc("backend_available", "1 when the last health probe succeeded."),
		rateRemaining:    desc("rate_limit_remaining", "Admissions left in the current rate limit window."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalCalls
	ch <- c.queueEnqueued
	ch <- c.errors
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheEntries
	ch <- c.queuePending
	ch <- c.backendAvailable
	ch <- c.rateRemaining
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.totalCalls, prometheus.CounterValue, float64(s.TotalCalls))
	ch <- prometheus.MustNewConstMetric(c.queueEnqueued, prometheus.CounterValue, float64(s.QueueEnqueued))
	for kind, n := range c.metrics.ErrorsByKind() {
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(n), kind)
	}
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.GaugeValue, float64(s.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.GaugeValue, float64(s.CacheMisses))

	if c.gauges == nil {
		return
	}
	g := c.gauges()
	available := 0.0
	if g.BackendAvailable {
		available = 1
	}
	ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(g.CacheEntries))
	ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, float64(g.QueuePending))
	ch <- prometheus.MustNewConstMetric(c.backendAvailable, prometheus.GaugeValue, available)
	ch <- prometheus.MustNewConstMetric(c.rateRemaining, prometheus.GaugeValue, float64(g.RateRemaining))
}

// Handler returns an HTTP handler serving reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

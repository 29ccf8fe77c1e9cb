// Package metrics provides Prometheus instrumentation for filesystem
// operations. Each collector owns its registry; nothing is registered
// globally, so tests can construct and discard collectors freely.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records per-operation counts, latencies, and byte volumes.
type Collector struct {
	registry *prometheus.Registry

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	transferredBytes  *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry under the given
// metric namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "bucketfs"
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		operationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total filesystem operations by name and result.",
		}, []string{"operation", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Filesystem operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		transferredBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transferred_bytes_total",
			Help:      "Bytes moved through read and write channels.",
		}, []string{"operation"}),
	}

	registry.MustRegister(c.operationCounter, c.operationDuration, c.transferredBytes)
	return c
}

// RecordOperation records one completed operation.
func (c *Collector) RecordOperation(operation string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.operationCounter.WithLabelValues(operation, result).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBytes records bytes transferred for an operation.
func (c *Collector) RecordBytes(operation string, n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.transferredBytes.WithLabelValues(operation).Add(float64(n))
}

// Handler exposes the collector's registry over HTTP for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

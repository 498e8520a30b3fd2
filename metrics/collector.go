// Package metrics exposes Prometheus instrumentation for batch writers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector counts batch writer activity. A nil *Collector is valid and
// records nothing.
type Collector struct {
	batches    *prometheus.CounterVec
	operations *prometheus.CounterVec
	changesets prometheus.Counter
	errors     *prometheus.CounterVec
	bodyBytes  prometheus.Histogram
}

// NewCollector registers the batch metrics with reg. A nil reg uses the
// default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		batches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "odatajson_batches_total",
				Help: "Total number of completed batch payloads",
			},
			[]string{"mode"}, // requests or responses
		),
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "odatajson_batch_operations_total",
				Help: "Total number of batch operations written",
			},
			[]string{"mode", "scope"}, // scope: batch or changeset
		),
		changesets: f.NewCounter(
			prometheus.CounterOpts{
				Name: "odatajson_batch_changesets_total",
				Help: "Total number of completed changesets",
			},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "odatajson_batch_errors_total",
				Help: "Total number of batch writer failures by error code",
			},
			[]string{"code"},
		),
		bodyBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "odatajson_batch_body_bytes",
				Help:    "Size of operation bodies written through content streams",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
	}
}

func (c *Collector) BatchCompleted(mode string) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(mode).Inc()
}

// OperationWritten counts one operation; inChangeset selects the scope label.
func (c *Collector) OperationWritten(mode string, inChangeset bool) {
	if c == nil {
		return
	}
	scope := "batch"
	if inChangeset {
		scope = "changeset"
	}
	c.operations.WithLabelValues(mode, scope).Inc()
}

func (c *Collector) ChangesetCompleted() {
	if c == nil {
		return
	}
	c.changesets.Inc()
}

func (c *Collector) Error(code string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(code).Inc()
}

func (c *Collector) BodyWritten(n int) {
	if c == nil {
		return
	}
	c.bodyBytes.Observe(float64(n))
}

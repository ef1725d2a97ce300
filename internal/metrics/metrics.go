// Package metrics exposes Prometheus collectors for a load run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mgijax/srcload/internal/source"
	"github.com/mgijax/srcload/internal/store"
)

const namespace = "srcload"

// Recorder collects load metrics on its own registry. It implements
// source.Observer.
type Recorder struct {
	registry *prometheus.Registry

	records       *prometheus.CounterVec
	failures      *prometheus.CounterVec
	flushes       *prometheus.CounterVec
	flushedRows   *prometheus.CounterVec
	flushDuration prometheus.Histogram
	pending       prometheus.Gauge
	cacheSize     prometheus.Gauge
}

var _ source.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Processed records by discovery method and outcome.",
		}, []string{"method", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_failures_total",
			Help:      "Records that failed, by error kind.",
		}, []string{"kind"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Batch flushes by status.",
		}, []string{"status"}),
		flushedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_rows_total",
			Help:      "Rows written by batch flushes.",
		}, []string{"table"}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Batch flush latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_writes",
			Help:      "Writes queued in the current batch.",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equivalence_cache_entries",
			Help:      "Collapsible sources held in the equivalence cache.",
		}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.records, r.failures, r.flushes, r.flushedRows, r.flushDuration, r.pending, r.cacheSize,
	)
	return r
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordProcessed implements source.Observer.
func (r *Recorder) RecordProcessed(res *source.Result) {
	r.records.WithLabelValues(res.Method.Label(), outcome(res)).Inc()
}

// RecordFailed implements source.Observer.
func (r *Recorder) RecordFailed(err error) {
	r.failures.WithLabelValues(source.KindOf(err).String()).Inc()
}

// RecordFlush records one flush attempt.
func (r *Recorder) RecordFlush(res store.FlushResult, seconds float64, err error) {
	r.flushDuration.Observe(seconds)
	if err != nil {
		r.flushes.WithLabelValues("error").Inc()
		return
	}
	r.flushes.WithLabelValues("ok").Inc()
	r.flushedRows.WithLabelValues("prb_source").Add(float64(res.Sources))
	r.flushedRows.WithLabelValues("seq_source_assoc").Add(float64(res.Associations))
	r.flushedRows.WithLabelValues("updates").Add(float64(res.Updates))
}

// SetPending sets the queued write gauge.
func (r *Recorder) SetPending(n int) {
	r.pending.Set(float64(n))
}

// SetCacheSize sets the equivalence cache gauge.
func (r *Recorder) SetCacheSize(n int) {
	r.cacheSize.Set(float64(n))
}

func outcome(res *source.Result) string {
	switch {
	case res.Created:
		return "created"
	case res.New:
		return "reused"
	case res.Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

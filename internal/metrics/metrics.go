// Package metrics wraps the Prometheus collectors exported around each
// reflow run, grounded on C360Studio-semspec's direct
// prometheus/client_golang dependency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dsi-mfg/reflow/internal/model"
)

// Recorder owns the collectors for a single process and registers them
// against its own registry so internal/server can mount /metrics
// independently of the default global registry.
type Recorder struct {
	registry     *prometheus.Registry
	runsTotal    *prometheus.CounterVec
	duration     prometheus.Histogram
	changesTotal prometheus.Counter
}

// New creates and registers the reflow metrics.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflow_runs_total",
			Help: "Total number of reflow runs, labeled by success.",
		}, []string{"success"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reflow_duration_seconds",
			Help:    "Wall-clock duration of a single reflow run.",
			Buckets: prometheus.DefBuckets,
		}),
		changesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflow_changes_total",
			Help: "Total number of work-order changes recorded across all runs.",
		}),
	}
	registry.MustRegister(r.runsTotal, r.duration, r.changesTotal)
	return r
}

// Registry exposes the underlying registry for promhttp.HandlerFor.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one completed run.
func (r *Recorder) Observe(result model.ReflowResult, elapsed time.Duration) {
	r.runsTotal.WithLabelValues(strconv.FormatBool(result.Success)).Inc()
	r.duration.Observe(elapsed.Seconds())
	r.changesTotal.Add(float64(len(result.Changes)))
}

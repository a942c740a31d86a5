// Package metrics records bulk job outcomes as Prometheus metrics.
//
// The CLI is short-lived, so metrics are not scraped; they are written to a
// node-exporter textfile once the command finishes.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rshade/cmsbulk/internal/engine/batch"
)

// Recorder is a batch.Observer backed by a private Prometheus registry.
type Recorder struct {
	registry  *prometheus.Registry
	operation string

	items         *prometheus.CounterVec
	groupDuration *prometheus.HistogramVec
	jobs          *prometheus.CounterVec
	notAttempted  *prometheus.CounterVec
}

var _ batch.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder labelling everything with operation
// (e.g. "create", "reorder", "delete").
func NewRecorder(operation string) *Recorder {
	r := &Recorder{
		registry:  prometheus.NewRegistry(),
		operation: operation,
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsbulk_items_total",
			Help: "Work items resolved, by outcome.",
		}, []string{"operation", "status"}),
		groupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cmsbulk_group_duration_seconds",
			Help:    "Time for one group of mutations to settle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsbulk_jobs_total",
			Help: "Finished jobs, by classification.",
		}, []string{"operation", "classification"}),
		notAttempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsbulk_items_not_attempted_total",
			Help: "Work items left pending by a cancelled job.",
		}, []string{"operation"}),
	}

	r.registry.MustRegister(r.items, r.groupDuration, r.jobs, r.notAttempted)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// OnGroupSettled implements batch.Observer.
func (r *Recorder) OnGroupSettled(g batch.GroupResult) {
	r.items.WithLabelValues(r.operation, batch.StatusSucceeded.String()).Add(float64(g.Succeeded))
	r.items.WithLabelValues(r.operation, batch.StatusFailed.String()).Add(float64(g.Failed))
	r.groupDuration.WithLabelValues(r.operation).Observe(g.Duration.Seconds())
}

// OnJobFinished implements batch.Observer.
func (r *Recorder) OnJobFinished(s batch.Summary) {
	r.jobs.WithLabelValues(r.operation, s.Classification.String()).Inc()
	r.notAttempted.WithLabelValues(r.operation).Add(float64(s.NotAttempted))
}

// WriteTextfile writes the current metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

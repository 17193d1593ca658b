// Package metrics records job orchestration metrics with Prometheus.
//
// linode-utils is a one-shot command, so nothing is served over HTTP: the
// registry is written to a node_exporter textfile when --metrics-file is set.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePruned  = "pruned"
)

// Wait result label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultTimeout = "timeout"
	ResultError   = "error"
)

// Recorder holds the collectors for one run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	JobPolls     prometheus.Counter
	JobsResolved *prometheus.CounterVec
	WaitDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		JobPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linode_utils_job_polls_total",
				Help: "Number of job list requests made while waiting for jobs",
			},
		),

		JobsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linode_utils_jobs_resolved_total",
				Help: "Jobs observed complete, by action and outcome",
			},
			[]string{"action", "outcome"},
		),

		WaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linode_utils_job_wait_duration_seconds",
				Help:    "Time spent waiting for a batch of jobs",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"step", "result"},
		),
	}

	r.registry.MustRegister(r.JobPolls, r.JobsResolved, r.WaitDuration)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePoll counts one job listing.
func (r *Recorder) ObservePoll() {
	if r == nil {
		return
	}
	r.JobPolls.Inc()
}

// ObserveJob counts one resolved job. Jobs that vanished from the listing
// have no known action and are recorded with an empty action label.
func (r *Recorder) ObserveJob(action, outcome string) {
	if r == nil {
		return
	}
	r.JobsResolved.WithLabelValues(action, outcome).Inc()
}

// ObserveWait records the duration of one wait.
func (r *Recorder) ObserveWait(step, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.WaitDuration.WithLabelValues(step, result).Observe(d.Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The write is atomic, as expected by the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

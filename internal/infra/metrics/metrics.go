// Package metrics counts what a holders run did and can dump the counters in
// Prometheus text format for the node_exporter textfile collector.
//
// Metrics:
//   - holders_fetch_outcomes_total{outcome} (Counter): page requests by classified outcome
//   - holders_retry_waits_total{reason} (Counter): delays taken, reason "quota" or "retry"
//   - holders_failed_offsets_total (Counter): offsets that used up their attempts
//   - holders_rows_written_total (Counter): rows handed to the CSV writer
//   - holders_last_run_duration_seconds (Gauge): wall time of the last finished run
//   - holders_last_run_timestamp_seconds (Gauge): unix time the last run finished
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder struct {
	registry *prometheus.Registry

	fetchOutcomes *prometheus.CounterVec
	retryWaits    *prometheus.CounterVec
	failedOffsets prometheus.Counter
	rowsWritten   prometheus.Counter
	runDuration   prometheus.Gauge
	runTimestamp  prometheus.Gauge
}

// NewRecorder registers the holders metrics on a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		fetchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holders_fetch_outcomes_total",
			Help: "Holders page requests by classified outcome",
		}, []string{"outcome"}),
		retryWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holders_retry_waits_total",
			Help: "Delays taken before retrying a holders page",
		}, []string{"reason"}),
		failedOffsets: factory.NewCounter(prometheus.CounterOpts{
			Name: "holders_failed_offsets_total",
			Help: "Offsets that exhausted their attempts",
		}),
		rowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "holders_rows_written_total",
			Help: "Rows written to the holders CSV",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "holders_last_run_duration_seconds",
			Help: "Duration of the last finished holders run",
		}),
		runTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "holders_last_run_timestamp_seconds",
			Help: "Unix time the last holders run finished",
		}),
	}
}

func (r *Recorder) Outcome(outcome string) {
	if r == nil {
		return
	}
	r.fetchOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Wait(reason string) {
	if r == nil {
		return
	}
	r.retryWaits.WithLabelValues(reason).Inc()
}

func (r *Recorder) FailedOffset() {
	if r == nil {
		return
	}
	r.failedOffsets.Inc()
}

// RunFinished records a completed run that wrote rows.
func (r *Recorder) RunFinished(rows int, d time.Duration) {
	if r == nil {
		return
	}
	r.rowsWritten.Add(float64(rows))
	r.runDuration.Set(d.Seconds())
	r.runTimestamp.SetToCurrentTime()
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

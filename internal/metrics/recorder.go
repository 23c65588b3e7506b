// Package metrics exposes learner activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records job, dataset and promotion metrics.
type Recorder struct {
	gatherer    prometheus.Gatherer
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
	examples    *prometheus.CounterVec
	promotions  *prometheus.CounterVec
	bestLoss    *prometheus.GaugeVec
}

// New registers the learner metrics on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_jobs_total",
				Help: "Training jobs by final status",
			},
			[]string{"status"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "learner_job_duration_seconds",
				Help:    "Duration of training jobs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"instrument"},
		),
		queueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "learner_job_queue_depth",
				Help: "Jobs waiting for a worker",
			},
		),
		examples: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_examples_built_total",
				Help: "Training examples built per instrument",
			},
			[]string{"instrument"},
		),
		promotions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_promotion_decisions_total",
				Help: "Promotion decisions by reason",
			},
			[]string{"instrument", "reason"},
		),
		bestLoss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "learner_best_loss",
				Help: "Loss of the promoted run per instrument",
			},
			[]string{"instrument"},
		),
	}
}

// RecordJob records a finished job. The recording methods are no-ops on a
// nil Recorder.
func (r *Recorder) RecordJob(instrument, status string, seconds float64) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status).Inc()
	r.jobDuration.WithLabelValues(instrument).Observe(seconds)
}

// SetQueueDepth records the number of queued jobs.
func (r *Recorder) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.queueDepth.Set(float64(n))
}

// RecordExamples records the size of a built dataset.
func (r *Recorder) RecordExamples(instrument string, n int) {
	if r == nil {
		return
	}
	r.examples.WithLabelValues(instrument).Add(float64(n))
}

// RecordPromotion records a promotion decision; promoted runs update the best loss.
func (r *Recorder) RecordPromotion(instrument, reason string, promoted bool, loss float64) {
	if r == nil {
		return
	}
	r.promotions.WithLabelValues(instrument, reason).Inc()
	if promoted {
		r.bestLoss.WithLabelValues(instrument).Set(loss)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

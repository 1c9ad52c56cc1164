// Package metrics exports session progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agucova/dudect"
)

// Sink is a dudect.ProgressSink that records every batch report.
type Sink struct {
	batches     *prometheus.CounterVec
	samples     *prometheus.GaugeVec
	maxT        *prometheus.GaugeVec
	tau         *prometheus.GaugeVec
	verdicts    *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	sessionTime *prometheus.HistogramVec
}

// NewSink registers the collectors with reg.
func NewSink(reg prometheus.Registerer) *Sink {
	f := promauto.With(reg)
	return &Sink{
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dudect_batches_total",
			Help: "Total batches measured by target",
		}, []string{"target"}),
		samples: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dudect_try_samples",
			Help: "Raw samples in the running try",
		}, []string{"target"}),
		maxT: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dudect_max_t",
			Help: "Largest |t| of the running try",
		}, []string{"target"}),
		tau: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dudect_tau",
			Help: "Largest |t| normalised by the square root of its sample count",
		}, []string{"target"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dudect_try_verdicts_total",
			Help: "Try verdicts by target and verdict",
		}, []string{"target", "verdict"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dudect_session_outcomes_total",
			Help: "Session outcomes by target and outcome",
		}, []string{"target", "outcome"}),
		sessionTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dudect_session_duration_seconds",
			Help:    "Duration of completed sessions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"target"}),
	}
}

// Progress implements dudect.ProgressSink.
func (s *Sink) Progress(p dudect.Progress) {
	r := p.Report
	s.batches.WithLabelValues(p.Target).Inc()
	s.samples.WithLabelValues(p.Target).Set(r.Samples)
	if r.Verdict == dudect.VerdictInconclusive {
		return
	}
	s.maxT.WithLabelValues(p.Target).Set(r.MaxT)
	s.tau.WithLabelValues(p.Target).Set(r.Tau)
	s.verdicts.WithLabelValues(p.Target, r.Verdict.String()).Inc()
}

// Observe records the outcome of a finished session.
func (s *Sink) Observe(res *dudect.Result) {
	s.outcomes.WithLabelValues(res.Target, res.Outcome.String()).Inc()
	s.sessionTime.WithLabelValues(res.Target).Observe(res.ElapsedTime.Seconds())
}

// Package metrics exports editor lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/proofline/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the proofline collectors.
type Recorder struct {
	transitions      *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	issuesFound      prometheus.Histogram
	corrections      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proofline_transitions_total",
				Help: "Accepted state transitions by event type",
			},
			[]string{"event"},
		),
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proofline_analyses_total",
				Help: "Completed analyses by outcome and failure kind",
			},
			[]string{"outcome", "kind"},
		),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proofline_analysis_duration_seconds",
				Help:    "Duration of analysis requests",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"outcome"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proofline_analyses_in_flight",
			Help: "Analyses currently outstanding",
		}),
		issuesFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proofline_issues_per_analysis",
			Help:    "Number of issues returned by successful analyses",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		corrections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proofline_corrections_applied_total",
				Help: "Applied corrections, by whether the draft changed",
			},
			[]string{"text_changed"},
		),
	}
	reg.MustRegister(r.transitions, r.analyses, r.analysisDuration, r.inFlight, r.issuesFound, r.corrections)
	return r
}

// Hooks returns lifecycle hooks feeding the collectors.
func (r *Recorder) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			r.transitions.WithLabelValues(string(e.Type)).Inc()
		},
		OnAnalysisStart: func(context.Context, *domain.AnalysisEvent) {
			r.inFlight.Inc()
		},
		OnAnalysisFinish: func(_ context.Context, e *domain.AnalysisEvent) {
			r.inFlight.Dec()
			outcome := "success"
			if e.Type == domain.EventAnalysisFailed {
				outcome = "failure"
			} else {
				r.issuesFound.Observe(float64(e.IssueCount))
			}
			r.analyses.WithLabelValues(outcome, string(e.Kind)).Inc()
			r.analysisDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
		},
		OnCorrectionApplied: func(_ context.Context, e *domain.CorrectionEvent) {
			r.corrections.WithLabelValues(strconv.FormatBool(e.TextChanged)).Inc()
		},
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus collectors describing reconciliation
// searches: how many ran, how they ended, how long they took and how much of
// the combination space they walked.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Taff4/conciliador-notas/internal/matcher"
)

const namespace = "conciliador"

// Recorder owns the search collectors and the registry they live in.
type Recorder struct {
	registry *prometheus.Registry

	searches    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	evaluated   prometheus.Counter
	depth       prometheus.Histogram
	candidates  prometheus.Histogram
	matchSize   prometheus.Histogram
	invalidReqs *prometheus.CounterVec
}

// NewRecorder builds a Recorder on a fresh registry that also carries the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Completed subset-sum searches by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall-clock time of subset-sum searches by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 12),
		}, []string{"outcome"}),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "combinations_evaluated_total",
			Help:      "Combinations whose sum was compared against a target.",
		}),
		depth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_depth",
			Help:      "Effective combination size bound of searches.",
			Buckets:   prometheus.LinearBuckets(1, 3, 10),
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Number of candidate notes per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		matchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_size",
			Help:      "Number of notes in found combinations.",
			Buckets:   prometheus.LinearBuckets(1, 1, 12),
		}),
		invalidReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_requests_total",
			Help:      "Rejected reconcile requests by offending field.",
		}, []string{"field"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.searches, r.duration, r.evaluated, r.depth, r.candidates, r.matchSize, r.invalidReqs,
	)
	return r
}

// ObserveSearch records one finished search over n candidates.
func (r *Recorder) ObserveSearch(n int, res matcher.Result) {
	outcome := res.Outcome.String()
	r.searches.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(res.Elapsed.Seconds())
	r.evaluated.Add(float64(res.Evaluated))
	r.depth.Observe(float64(res.Depth))
	r.candidates.Observe(float64(n))
	if res.Outcome == matcher.Found {
		r.matchSize.Observe(float64(res.Size()))
	}
}

// ObserveInvalid records a request rejected on field.
func (r *Recorder) ObserveInvalid(field string) {
	r.invalidReqs.WithLabelValues(field).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

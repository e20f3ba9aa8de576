// Package metrics records tool invocation outcomes for Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder observes finished tool invocations.
type Recorder interface {
	// Observe records one invocation. code is the error code of the
	// outcome, "ok" on success.
	Observe(ctx context.Context, tool, code string, duration time.Duration)

	// Suspicious counts an argument flagged by injection screening.
	Suspicious(tool, param string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Observe(context.Context, string, string, time.Duration) {}
func (NopRecorder) Suspicious(string, string)                             {}

// PrometheusRecorder keeps per-tool counters and latency histograms in its
// own registry.
type PrometheusRecorder struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	suspicious  *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the eMISTR collectors together with the
// Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emistr",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and result code.",
		}, []string{"tool", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "emistr",
			Name:      "tool_duration_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),
		suspicious: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emistr",
			Name:      "suspicious_arguments_total",
			Help:      "Arguments flagged by SQL injection screening.",
		}, []string{"tool", "param"}),
	}
	r.registry.MustRegister(
		r.invocations,
		r.duration,
		r.suspicious,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *PrometheusRecorder) Observe(_ context.Context, tool, code string, duration time.Duration) {
	r.invocations.WithLabelValues(tool, code).Inc()
	r.duration.WithLabelValues(tool).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) Suspicious(tool, param string) {
	r.suspicious.WithLabelValues(tool, param).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

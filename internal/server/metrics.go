package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codevisor",
			Name:      "requests_total",
			Help:      "Analysis requests by endpoint, language and status code.",
		}, []string{"endpoint", "language", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codevisor",
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing code, cache hits excluded.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"endpoint", "language"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codevisor",
			Name:      "cache_hits_total",
			Help:      "Analyses served from the result cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codevisor",
			Name:      "cache_misses_total",
			Help:      "Analyses not found in the result cache.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.cacheHits,
		m.cacheMisses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

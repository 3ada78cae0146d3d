package server

import (
	stdliberrors "errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracehound",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "HTTP requests handled, labeled by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	metricRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tracehound",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"route"},
	)

	metricTracesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracehound",
		Subsystem: "server",
		Name:      "traces_loaded_total",
		Help:      "Trace contexts built to answer API requests.",
	})

	metricParseWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracehound",
		Subsystem: "server",
		Name:      "parse_warnings_total",
		Help:      "Malformed trace lines skipped while loading traces.",
	})

	metricDiagnoseIssues = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tracehound",
		Subsystem: "server",
		Name:      "diagnose_issues",
		Help:      "Issues detected per diagnose request.",
		Buckets:   prometheus.LinearBuckets(0, 1, 11), // 0 to 10
	})
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		s.writeError(w, http.StatusUnauthorized, stdliberrors.New("unauthorized"))
		return
	}
	promhttp.Handler().ServeHTTP(w, r)
}

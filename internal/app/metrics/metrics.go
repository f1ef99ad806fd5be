package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sitewrap",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitewrap",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sitewrap",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	publishRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitewrap",
			Subsystem: "publish",
			Name:      "runs_total",
			Help:      "Total number of publish pipeline runs.",
		},
		[]string{"status", "failed_state"},
	)

	publishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sitewrap",
			Subsystem: "publish",
			Name:      "run_duration_seconds",
			Help:      "Duration of publish pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7m
		},
		[]string{"status"},
	)

	analysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitewrap",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of site analysis runs.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		publishRuns,
		publishDuration,
		analysisRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordPublish records one publish pipeline run.
func RecordPublish(status, failedState string, duration time.Duration) {
	if failedState == "" {
		failedState = "none"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	publishRuns.WithLabelValues(status, failedState).Inc()
	publishDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAnalysis records one site analysis run.
func RecordAnalysis(success bool) {
	status := "succeeded"
	if !success {
		status = "failed"
	}
	analysisRuns.WithLabelValues(status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "apps" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/apps"
	}
	if len(parts) == 2 {
		return "/apps/:app"
	}
	return "/apps/:app/" + parts[2]
}

package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cutman_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutman_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutman_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	gitPackBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutman_git_pack_bytes_total",
			Help: "Bytes transferred through git-upload-pack and git-receive-pack.",
		},
		[]string{"service", "direction"},
	)

	lfsObjectBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutman_lfs_object_bytes_total",
			Help: "Bytes transferred through the LFS content endpoint.",
		},
		[]string{"direction"},
	)
)

// Init registers all metrics collectors with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		gitPackBytesTotal,
		lfsObjectBytesTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGitPackBytes records bytes moved by a smart-HTTP service invocation.
func ObserveGitPackBytes(service, direction string, n int64) {
	if n <= 0 {
		return
	}
	gitPackBytesTotal.WithLabelValues(service, direction).Add(float64(n))
}

// ObserveLFSBytes records bytes moved through the LFS content endpoint.
func ObserveLFSBytes(direction string, n int64) {
	if n <= 0 {
		return
	}
	lfsObjectBytesTotal.WithLabelValues(direction).Add(float64(n))
}

// CanonicalPath turns a matched mux pattern into a route label for metric
// export: the pattern is returned unchanged, and an empty pattern becomes
// "unknown".
func CanonicalPath(pattern string) string {
	if pattern == "" {
		return "unknown"
	}
	return pattern
}

// Instrument wraps a handler with in-flight/latency/count instrumentation.
// route should be the matched mux pattern, not the raw request path, to
// keep the status/route label cardinality bounded.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)
		label := route
		if label == "" {
			label = CanonicalPath(r.Pattern)
		}

		httpRequestDuration.WithLabelValues(method, label, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, label, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opsRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowdex",
			Subsystem: "ops",
			Name:      "request_duration_seconds",
			Help:      "Operational endpoint request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "status"},
	)

	opsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowdex",
			Subsystem: "ops",
			Name:      "requests_total",
			Help:      "Operational endpoint requests",
		},
		[]string{"path", "status"},
	)
)

func init() {
	prometheus.MustRegister(opsRequestDuration)
	prometheus.MustRegister(opsRequestsTotal)
}

// Middleware records request counts and latency for the operational
// endpoints. Requests are labeled by chi route pattern, so probes of
// unmatched paths collapse into a single series instead of growing the
// label space.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			path := chi.RouteContext(r.Context()).RoutePattern()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(sw.Status())
			opsRequestDuration.WithLabelValues(path, status).Observe(time.Since(start).Seconds())
			opsRequestsTotal.WithLabelValues(path, status).Inc()
		})
	}
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

// Status returns the recorded code. A handler that never called
// WriteHeader responded 200 implicitly.
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

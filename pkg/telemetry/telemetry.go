// Package telemetry provides low-overhead request instrumentation: a
// prometheus histogram per route plus warn-level logging of slow
// requests.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/westbrookdaniel/chat/pkg/logger"
)

var slowThreshold = 200 * time.Millisecond

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chat",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by path and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path", "status"})

	// StreamsStarted counts turn streams opened by the inference handler.
	StreamsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "stream",
		Name:      "started_total",
		Help:      "Turn streams started.",
	})

	// StreamsFinished counts streams by terminal outcome
	// (finish, error, cancelled).
	StreamsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "stream",
		Name:      "finished_total",
		Help:      "Turn streams finished by outcome.",
	}, []string{"outcome"})
)

// statusWriter records the status code while passing Flush through so
// SSE stays streamable underneath the middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware wraps the provided handler and records request timing.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		requestDuration.WithLabelValues(routeLabel(r), strconv.Itoa(sw.status)).Observe(dur.Seconds())
		if dur > slowThreshold && r.URL.Path != "/v1/chat" {
			// chat streams are expected to run long
			logger.Warn("slow_request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration_ms", dur.Milliseconds())
		}
	})
}

// routeLabel collapses per-thread paths so the histogram stays bounded.
func routeLabel(r *http.Request) string {
	p := r.URL.Path
	if len(p) > len("/v1/threads/") && p[:len("/v1/threads/")] == "/v1/threads/" {
		return "/v1/threads/{id}"
	}
	return p
}

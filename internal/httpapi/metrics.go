package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const ndjsonContentType = "application/x-ndjson"

var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Requests answered by the overlayd API, by chi route pattern and status code.",
		},
		[]string{"route", "method", "code"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "overlayd",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Time to answer non-streaming API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"route", "method"},
	)

	apiInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "overlayd",
		Subsystem: "api",
		Name:      "inflight_requests",
		Help:      "API requests being handled, open streams included.",
	})

	streamLifetime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "overlayd",
			Subsystem: "api",
			Name:      "stream_seconds",
			Help:      "How long completion and event subscribers stayed attached.",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 4 * 3600},
		},
		[]string{"route"},
	)

	streamsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "overlayd",
		Subsystem: "api",
		Name:      "streams_open",
		Help:      "NDJSON subscriptions currently attached.",
	})

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "api",
			Name:      "rejected_total",
			Help:      "Requests refused with 429, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(apiRequests, apiLatency, apiInflight, streamLifetime, streamsOpen, backpressureTotal)
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush lets NDJSON streams flush through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func (sr *statusRecorder) streamed() bool {
	return sr.status == http.StatusOK && sr.Header().Get("Content-Type") == ndjsonContentType
}

// MetricsMiddleware counts API requests by route. Stream subscriptions are
// timed separately so they do not swamp the latency histogram.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiInflight.Inc()
		defer apiInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		took := time.Since(start).Seconds()

		// The route pattern is only known once chi has routed the request.
		route := routeLabel(r)
		apiRequests.WithLabelValues(route, r.Method, strconv.Itoa(sr.status)).Inc()
		if sr.streamed() {
			streamLifetime.WithLabelValues(route).Observe(took)
			return
		}
		apiLatency.WithLabelValues(route, r.Method).Observe(took)
	})
}

// routeLabel returns the chi route pattern, or "unmatched" when no route
// handled the request.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// IncrementBackpressure records a 429 answer.
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}

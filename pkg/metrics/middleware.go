package metrics

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// EnvLatencyBuckets overrides the request latency buckets, formatted like "100,200,300,400".
	EnvLatencyBuckets = "WAVE_PLANNER_HTTP_LATENCY_BUCKETS"

	httpSubsystem         = "http"
	requestsCollectorName = "requests_total"
	latencyCollectorName  = "request_duration_milliseconds"

	// unmatchedRoute labels requests no route pattern matched, so raw paths never become label values.
	unmatchedRoute = "unmatched"
)

var defaultLatencyBuckets = []float64{50, 300, 1000, 5000, 30000}

// Middleware counts API requests and their latency partitioned by status code,
// method and route pattern.
type Middleware struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// latencyBuckets reads EnvLatencyBuckets. Malformed entries fall back to the defaults.
func latencyBuckets() []float64 {
	conf, ok := os.LookupEnv(EnvLatencyBuckets)
	if !ok {
		return defaultLatencyBuckets
	}
	var buckets []float64
	for _, v := range strings.Split(conf, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultLatencyBuckets
		}
		buckets = append(buckets, f)
	}
	return buckets
}

// NewMiddleware returns the request metrics of the named server.
func NewMiddleware(server string) *Middleware {
	labels := []string{"code", "method", "route"}
	return &Middleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   wavePlanner,
			Subsystem:   httpSubsystem,
			Name:        requestsCollectorName,
			Help:        "Number of API requests partitioned by status code, method and route.",
			ConstLabels: prometheus.Labels{"server": server},
		}, labels),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   wavePlanner,
			Subsystem:   httpSubsystem,
			Name:        latencyCollectorName,
			Help:        "Time spent on API requests partitioned by status code, method and route.",
			ConstLabels: prometheus.Labels{"server": server},
			Buckets:     latencyBuckets(),
		}, labels),
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		m.requests.WithLabelValues(code, r.Method, route).Inc()
		m.latency.WithLabelValues(code, r.Method, route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (m *Middleware) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.latency}
}

// MustRegisterDefault registers the collectors with the default registerer
// served by the metrics server.
func (m *Middleware) MustRegisterDefault() {
	prometheus.MustRegister(m.Collectors()...)
}

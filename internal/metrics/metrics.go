package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockmeta/internal/batch"
	"stockmeta/internal/queue"
)

const (
	namespace = "stockmeta"

	outcomeLabel = "outcome"
	kindLabel    = "error_kind"
	resultLabel  = "result"
)

var itemDurationBuckets = []float64{0.5, 1, 2, 5, 10, 20, 40, 80}

// Metrics owns stockmeta's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	runs          prometheus.Counter
	items         *prometheus.CounterVec
	itemDuration  prometheus.Histogram
	inFlight      prometheus.Gauge
	verifications *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers all collectors, plus Go runtime and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of batch runs started.",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Number of processed items partitioned by outcome and error kind.",
		}, []string{outcomeLabel, kindLabel}),
		itemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent encoding and describing one item.",
			Buckets:   itemDurationBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Number of batch runs currently in progress.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_verifications_total",
			Help:      "Number of API key verifications partitioned by result.",
		}, []string{resultLabel}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests partitioned by status code, method and route.",
		}, []string{"code", "method", "path"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_milliseconds",
			Help:      "Time spent on HTTP requests partitioned by status code, method and route.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000},
		}, []string{"code", "method", "path"}),
	}
	m.registry.MustRegister(
		m.runs,
		m.items,
		m.itemDuration,
		m.inFlight,
		m.verifications,
		m.requests,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RunStarted(string, int) {
	m.runs.Inc()
	m.inFlight.Inc()
}

func (m *Metrics) ItemStarted(string, queue.Item) {}

func (m *Metrics) ItemFinished(_ string, item queue.Item, elapsed time.Duration) {
	m.items.WithLabelValues(string(item.Status), item.ErrorKind).Inc()
	m.itemDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RunFinished(string, batch.Summary) {
	m.inFlight.Dec()
}

// CredentialVerified counts one verification attempt.
func (m *Metrics) CredentialVerified(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.verifications.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		m.requests.WithLabelValues(code, r.Method, route).Inc()
		m.latency.WithLabelValues(code, r.Method, route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

var _ batch.Observer = (*Metrics)(nil)

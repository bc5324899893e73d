// Package metrics exports Prometheus collectors for the HTTP surface, the
// multi-store sagas, blob store calls and the background purger.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "drive"

	StatusSuccess = "success"
	StatusError   = "error"

	OutcomeCommitted   = "committed"
	OutcomeCompensated = "compensated"
	OutcomeFailed      = "failed"

	RoutePath = "/metrics"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInFlight  prometheus.Gauge
	sagaOutcomes  *prometheus.CounterVec
	compensations *prometheus.CounterVec
	blobDuration  *prometheus.HistogramVec
	purgedBlocks  *prometheus.CounterVec
	purgeFailures *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

// New builds collectors on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		httpRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		httpInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "HTTP requests currently being served",
			},
		),
		sagaOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_outcomes_total",
				Help:      "Multi-store operations by saga and outcome",
			},
			[]string{"saga", "outcome"},
		),
		compensations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_compensations_total",
				Help:      "Compensation steps run by saga, step and status",
			},
			[]string{"saga", "step", "status"},
		),
		blobDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "blob_operation_duration_seconds",
				Help:      "Blob store call latency by backend, operation and status",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"backend", "operation", "status"},
		),
		purgedBlocks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purger_blocks_purged_total",
				Help:      "Rows physically removed by the purger by kind",
			},
			[]string{"kind"},
		),
		purgeFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purger_failures_total",
				Help:      "Purger passes that failed by stage",
			},
			[]string{"stage"},
		),
		cacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "url_cache_lookups_total",
				Help:      "Signed URL cache lookups by result",
			},
			[]string{"result"},
		),
		registry: reg,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterRoute mounts the scrape endpoint on e.
func (m *Metrics) RegisterRoute(e *echo.Echo) {
	e.GET(RoutePath, echo.WrapHandler(m.Handler()))
}

// Middleware records request count, latency and in-flight requests. The
// route template is used as label so ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			m.httpInFlight.Inc()
			start := time.Now()

			err := next(c)

			m.httpInFlight.Dec()

			// Render the error here so the recorded status matches the
			// response the client gets.
			if err != nil {
				c.Error(err)
			}
			code := c.Response().Status

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return nil
		}
	}
}

func (m *Metrics) ObserveSaga(saga, outcome string) {
	if m == nil {
		return
	}
	m.sagaOutcomes.WithLabelValues(saga, outcome).Inc()
}

func (m *Metrics) ObserveCompensation(saga, step string, err error) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(saga, step, status(err)).Inc()
}

func (m *Metrics) ObserveBlob(backend, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.blobDuration.WithLabelValues(backend, operation, status(err)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePurged(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedBlocks.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) ObservePurgeFailure(stage string) {
	if m == nil {
		return
	}
	m.purgeFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

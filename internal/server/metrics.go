package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus instruments for the HTTP surface and the two
// domain operations worth watching on a single-node service.
type Metrics struct {
	logger *zap.Logger

	requestsTotal  *prometheus.CounterVec
	requestDur     *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	ingestTotal   *prometheus.CounterVec
	searchResults prometheus.Histogram
}

// NewMetrics creates and registers the instruments. Registration conflicts
// are tolerated so tests can construct multiple servers in one process.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		logger: logger,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingatd_http_requests_total",
			Help: "Total HTTP requests labeled by method, endpoint, and status code.",
		}, []string{"method", "endpoint", "status"}),
		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingatd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds labeled by method and endpoint.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "endpoint"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingatd_http_active_requests",
			Help: "Number of currently active HTTP requests.",
		}),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingatd_contexts_ingested_total",
			Help: "Total context records ingested, labeled by project.",
		}, []string{"project"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingatd_search_results",
			Help:    "Result counts returned per search request.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 50},
		}),
	}

	for _, collector := range []prometheus.Collector{
		m.requestsTotal, m.requestDur, m.activeRequests, m.ingestTotal, m.searchResults,
	} {
		if err := prometheus.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				m.adopt(collector, already.ExistingCollector)
				continue
			}
			logger.Warn("failed to register metric", zap.Error(err))
		}
	}

	return m
}

func (m *Metrics) adopt(requested, existing prometheus.Collector) {
	switch requested {
	case m.requestsTotal:
		m.requestsTotal = existing.(*prometheus.CounterVec)
	case m.requestDur:
		m.requestDur = existing.(*prometheus.HistogramVec)
	case m.activeRequests:
		m.activeRequests = existing.(prometheus.Gauge)
	case m.ingestTotal:
		m.ingestTotal = existing.(*prometheus.CounterVec)
	case m.searchResults:
		m.searchResults = existing.(prometheus.Histogram)
	}
}

// Middleware returns an Echo middleware that records request metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.activeRequests.Inc()

			err := next(c)

			duration := time.Since(start)
			method := c.Request().Method
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "/"
			}

			m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(c.Response().Status)).Inc()
			m.requestDur.WithLabelValues(method, endpoint).Observe(duration.Seconds())
			m.activeRequests.Dec()

			return err
		}
	}
}

// ObserveIngest records one persisted context record.
func (m *Metrics) ObserveIngest(project string) {
	m.ingestTotal.WithLabelValues(project).Inc()
}

// ObserveSearch records the result count of one search.
func (m *Metrics) ObserveSearch(results int) {
	m.searchResults.Observe(float64(results))
}

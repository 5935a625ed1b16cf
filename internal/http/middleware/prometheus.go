package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMiddleware holds the request metrics.
type PrometheusMiddleware struct {
	requestCount  *prometheus.CounterVec
	rateLimited   prometheus.Counter
	uploadedBytes *prometheus.CounterVec
	uploads       *prometheus.CounterVec
}

// NewPrometheusMiddleware registers the HTTP and upload metrics with the
// given registry.
func NewPrometheusMiddleware(reg prometheus.Registerer) (*PrometheusMiddleware, error) {
	m := &PrometheusMiddleware{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_requests_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
		),
		uploadedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_uploaded_bytes_total",
				Help: "Bytes accepted into storage, by category.",
			},
			[]string{"category"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_uploads_total",
				Help: "Upload attempts, by category and outcome.",
			},
			[]string{"category", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.requestCount, m.rateLimited, m.uploadedBytes, m.uploads} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveUpload records one upload attempt.
func (m *PrometheusMiddleware) ObserveUpload(category, outcome string, bytes int64) {
	m.uploads.WithLabelValues(category, outcome).Inc()
	if bytes > 0 {
		m.uploadedBytes.WithLabelValues(category).Add(float64(bytes))
	}
}

// Handler returns the fiber middleware counting requests by route pattern.
func (m *PrometheusMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		err := c.Next()

		// Route pattern (e.g. /api/documents/:category/:filename) rather
		// than the raw path, to keep label cardinality bounded.
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}

		status := c.Response().StatusCode()
		if err != nil {
			if fiberErr, ok := err.(*fiber.Error); ok {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		if status == fiber.StatusTooManyRequests {
			m.rateLimited.Inc()
		}

		m.requestCount.WithLabelValues(
			c.Method(),
			path,
			strconv.Itoa(status),
		).Inc()

		return err
	}
}

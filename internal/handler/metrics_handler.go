package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const unmatchedRoute = "__unmatched__"

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filevault_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path", "status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filevault_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filevault_http_requests_in_flight",
		Help: "Requests currently being served",
	})

	uploadedBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "filevault_file_upload_size_bytes",
		Help:    "Size of stored uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 10, 6),
	})

	filesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filevault_files_uploaded_total",
		Help: "Total number of files stored",
	})

	shortLinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filevault_short_links_created_total",
		Help: "Total number of short links created",
	})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filevault_auth_failures_total",
		Help: "Rejected bearer tokens by reason",
	}, []string{"reason"})
)

// MetricsHandler serves the default Prometheus registry in text format.
type MetricsHandler struct {
	gatherer prometheus.Gatherer
}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{gatherer: prometheus.DefaultGatherer}
}

func (h *MetricsHandler) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		families, err := h.gatherer.Gather()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("failed to gather metrics")
		}

		var sb strings.Builder
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("failed to format metrics")
			}
		}

		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
		return c.SendString(sb.String())
	}
}

// MetricsMiddleware records request counts and latency labelled by route
// template, so /s/:slug is one series regardless of slug.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()
		start := time.Now()

		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = unmatchedRoute
		}
		status := statusClass(c.Response().StatusCode())

		requestsTotal.WithLabelValues(c.Method(), path, status).Inc()
		requestDuration.WithLabelValues(c.Method(), path, status).Observe(time.Since(start).Seconds())
		return err
	}
}

func RecordFileUpload(size float64) {
	uploadedBytes.Observe(size)
	filesStored.Inc()
}

func recordShortLinkCreated() {
	shortLinksCreated.Inc()
}

func RecordAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}

// statusClass buckets status codes. 429 keeps its own label.
func statusClass(status int) string {
	switch {
	case status == fiber.StatusTooManyRequests:
		return "429"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

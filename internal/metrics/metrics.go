package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legal_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "legal_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ConsultationsCreated counts bookings by mode.
	ConsultationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legal_consultations_created_total",
		Help: "Consultations created, by mode",
	}, []string{"mode"})

	// ChatMessages counts consultation chat messages.
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legal_chat_messages_total",
		Help: "Consultation chat messages posted, by content type and sender role",
	}, []string{"content_type", "sender_role"})

	// RelayUploads counts document relay attempts.
	RelayUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legal_relay_uploads_total",
		Help: "Document relay uploads by provider and result",
	}, []string{"provider", "result"})

	// AIRequests counts calls to the AI backend.
	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legal_ai_requests_total",
		Help: "AI backend calls by endpoint and result",
	}, []string{"endpoint", "result"})

	// AIDuration tracks AI backend latency.
	AIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "legal_ai_request_duration_seconds",
		Help:    "AI backend latency by endpoint",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})

	// StagingFilesSwept counts orphaned staging files removed by the sweeper.
	StagingFilesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "legal_staging_files_swept_total",
		Help: "Orphaned staging files removed by the sweeper",
	})
)

// Result turns an error into a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request count and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = StatusOf(err)
		}
		route := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// StatusOf returns the HTTP status an error will be rendered with.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if ae, ok := apperr.As(err); ok {
		return ae.Status()
	}
	return fiber.StatusInternalServerError
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Package middleware provides HTTP instrumentation for the gin router.
package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"github.com/sequentry/sequentry/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	httpRequestsInFlight metric.Int64UpDownCounter
	initOnce             sync.Once
)

func initMetrics(ctx context.Context, meter metric.Meter) {
	if meter == nil {
		return
	}
	log := logger.FromContext(ctx)
	initOnce.Do(func() {
		var err error
		httpRequestsTotal, err = meter.Int64Counter(
			metrics.MetricName("http_requests_total"),
			metric.WithDescription("Total HTTP requests"),
		)
		if err != nil {
			log.Error("Failed to create http requests total counter", "error", err)
		}
		httpRequestDuration, err = meter.Float64Histogram(
			metrics.MetricName("http_request_duration_seconds"),
			metric.WithDescription("HTTP request latency"),
			metric.WithExplicitBucketBoundaries(metrics.HTTPDurationBuckets...),
		)
		if err != nil {
			log.Error("Failed to create http request duration histogram", "error", err)
		}
		httpRequestsInFlight, err = meter.Int64UpDownCounter(
			metrics.MetricName("http_requests_in_flight"),
			metric.WithDescription("Currently active HTTP requests"),
		)
		if err != nil {
			log.Error("Failed to create http requests in flight counter", "error", err)
		}
	})
}

// ResetMetricsForTesting resets initialization state between test runs.
func ResetMetricsForTesting() {
	httpRequestsTotal = nil
	httpRequestDuration = nil
	httpRequestsInFlight = nil
	initOnce = sync.Once{}
}

// HTTPMetrics returns a Gin middleware that collects HTTP metrics.
func HTTPMetrics(ctx context.Context, meter metric.Meter) gin.HandlerFunc {
	initMetrics(ctx, meter)
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		httpRequestsInFlight.Add(c.Request.Context(), 1)
		defer httpRequestsInFlight.Add(c.Request.Context(), -1)

		c.Next()

		recordMetrics(c, start)
	}
}

func recordMetrics(c *gin.Context, start time.Time) {
	duration := time.Since(start).Seconds()
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", c.Request.Method),
		attribute.String("path", path),
		attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
	)
	httpRequestsTotal.Add(c.Request.Context(), 1, attrs)
	httpRequestDuration.Record(c.Request.Context(), duration, attrs)
}

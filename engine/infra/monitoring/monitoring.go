// Package monitoring wires the OpenTelemetry meter to a Prometheus exporter
// and provides the HTTP surface for scraping. When disabled, every consumer
// receives a no-op meter so instrumentation code never branches.
package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sequentry/sequentry/engine/infra/monitoring/middleware"
	"github.com/sequentry/sequentry/pkg/logger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "sequentry"

// Service encapsulates metrics setup and exposure.
type Service struct {
	meter       metric.Meter
	exporter    *prometheus.Exporter
	provider    *sdkmetric.MeterProvider
	registry    *prom.Registry
	config      *Config
	initialized bool
}

// newDisabledService creates a service instance with no-op implementations.
func newDisabledService(cfg *Config) *Service {
	return &Service{
		config:      cfg,
		meter:       noop.NewMeterProvider().Meter(meterName),
		initialized: false,
	}
}

// NewService creates a monitoring service with a Prometheus exporter behind
// a private registry.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(cfg), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)
	service := &Service{
		meter:       meter,
		exporter:    exporter,
		provider:    provider,
		registry:    registry,
		config:      cfg,
		initialized: true,
	}
	initSystemMetrics(ctx, meter)
	log.Info("Monitoring service initialized", "path", cfg.Path)
	return service, nil
}

// Meter returns the OpenTelemetry meter for custom instrumentation.
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Path returns the configured exporter path.
func (s *Service) Path() string {
	return s.config.Path
}

// GinMiddleware returns Gin middleware for HTTP metrics.
func (s *Service) GinMiddleware(ctx context.Context) gin.HandlerFunc {
	if !s.initialized {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return middleware.HTTPMetrics(ctx, s.meter)
}

// ExporterHandler returns an HTTP handler for the metrics endpoint.
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the monitoring service.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Shutdown(ctx)
	}
	return nil
}

// IsInitialized reports whether the exporter pipeline is active.
func (s *Service) IsInitialized() bool {
	return s.initialized
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sequentry/sequentry/engine/infra/server/appstate"
	"github.com/sequentry/sequentry/engine/infra/server/middleware/ratelimit"
	"github.com/sequentry/sequentry/engine/infra/server/middleware/size"
	"github.com/sequentry/sequentry/engine/infra/server/routes"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
	"github.com/sequentry/sequentry/pkg/version"
)

const (
	maxRequestBody        = 1 << 20 // submissions are short-form content
	dependencyPingTimeout = 2 * time.Second
	hostAny               = "0.0.0.0"
	hostLoopback          = "127.0.0.1"
)

func convertRateLimitConfig(cfg *config.Config) *ratelimit.Config {
	excluded := []string{
		routes.Liveness(),        // process liveness probe
		routes.HealthVersioned(), // versioned API health
		monitoringPath(cfg),      // Prometheus
	}
	excluded = append(excluded, cfg.RateLimit.ExcludedPaths...)
	return &ratelimit.Config{
		GlobalRate: ratelimit.RateConfig{
			Limit:  cfg.RateLimit.GlobalRate.Limit,
			Period: cfg.RateLimit.GlobalRate.Period,
		},
		RedisAddr:     cfg.RateLimit.RedisAddr,
		RedisPassword: cfg.RateLimit.RedisPassword,
		RedisDB:       cfg.RateLimit.RedisDB,
		Prefix:        cfg.RateLimit.Prefix,
		MaxRetry:      cfg.RateLimit.MaxRetry,
		ExcludedPaths: excluded,
	}
}

func monitoringPath(cfg *config.Config) string {
	if cfg.Monitoring.Path != "" {
		return cfg.Monitoring.Path
	}
	return "/metrics"
}

func (s *Server) buildRouter(deps *dependencies) error {
	if s.config.Runtime.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	s.useRateLimiter(r, deps)
	if deps.monitoring.IsInitialized() {
		r.Use(deps.monitoring.GinMiddleware(s.ctx))
	}
	r.Use(LoggerMiddleware(s.ctx))
	if s.config.Server.CORSEnabled {
		r.Use(CORSMiddleware())
	}
	r.Use(size.BodySizeLimiter(maxRequestBody))
	r.Use(appstate.StateMiddleware(deps.state))
	r.GET(routes.Liveness(), livenessHandler(deps.state))
	if deps.monitoring.IsInitialized() {
		r.GET(monitoringPath(s.config), gin.WrapH(deps.monitoring.ExporterHandler()))
	}
	if err := RegisterRoutes(s.ctx, r, deps.state); err != nil {
		return err
	}
	s.router = r
	s.logStartupBanner(deps)
	return nil
}

// useRateLimiter mounts the global limiter when one is configured. Limiter
// setup failures are logged and skipped; traffic shaping is never worth a
// failed boot.
func (s *Server) useRateLimiter(r *gin.Engine, deps *dependencies) {
	if s.config.RateLimit.GlobalRate.Limit <= 0 {
		return
	}
	log := logger.FromContext(s.ctx)
	rateLimitConfig := convertRateLimitConfig(s.config)
	// A dedicated limiter redis address wins over the shared cache client.
	var redisClient redis.UniversalClient
	if rateLimitConfig.RedisAddr == "" {
		redisClient = deps.state.Cache.Client()
	}
	var manager *ratelimit.Manager
	var err error
	if deps.monitoring.IsInitialized() {
		manager, err = ratelimit.NewManagerWithMetrics(s.ctx, rateLimitConfig, redisClient, deps.monitoring.Meter())
	} else {
		manager, err = ratelimit.NewManager(rateLimitConfig, redisClient)
	}
	if err != nil {
		log.Error("Failed to initialize rate limiting", "error", err)
		return
	}
	r.Use(manager.Middleware())
	log.Info("rate limiter initialized",
		"driver", "redis",
		"global_limit", s.config.RateLimit.GlobalRate.Limit,
		"global_period", s.config.RateLimit.GlobalRate.Period)
}

// livenessHandler reports process health plus the reachability of the two
// backing stores. Deploy tooling treats 503 as not-ready.
func livenessHandler(state *appstate.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), dependencyPingTimeout)
		defer cancel()
		checks := gin.H{}
		healthy := true
		if err := state.Store.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
		if err := state.Cache.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
		status := http.StatusOK
		result := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			result = "degraded"
		}
		c.JSON(status, gin.H{
			"status":  result,
			"checks":  checks,
			"version": version.Get().Version,
		})
	}
}

func (s *Server) logStartupBanner(deps *dependencies) {
	log := logger.FromContext(s.ctx)
	fh := friendlyHost(s.config.Server.Host)
	httpURL := fmt.Sprintf("http://%s:%d", fh, s.config.Server.Port)
	lines := []string{
		fmt.Sprintf("Sequentry %s", version.Get().Version),
		fmt.Sprintf("  API       > %s%s", httpURL, routes.Base()),
		fmt.Sprintf("  Health    > %s%s", httpURL, routes.HealthVersioned()),
		fmt.Sprintf("  Liveness  > %s%s", httpURL, routes.Liveness()),
	}
	if deps.monitoring.IsInitialized() {
		lines = append(lines, fmt.Sprintf("  Metrics   > %s%s", httpURL, monitoringPath(s.config)))
	}
	log.Info("\n" + strings.Join(lines, "\n"))
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}

package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sequentry/sequentry/pkg/logger"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel/metric"
)

// Manager owns the limiter instances for the HTTP surface: one global
// limiter plus optional per-route and per-API-key overrides. All instances
// share one store so a redis deployment throttles across replicas.
type Manager struct {
	config *Config
	store  limiter.Store
	global *limiter.Limiter
	apiKey *limiter.Limiter
	routes map[string]*limiter.Limiter
}

// NewManager builds the limiter set. A nil redis client selects the
// in-memory store; cfg.RedisAddr can force a dedicated limiter database.
func NewManager(cfg *Config, redisClient redis.UniversalClient) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if redisClient == nil && cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	store, err := buildStore(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		config: cfg,
		store:  store,
		routes: make(map[string]*limiter.Limiter, len(cfg.RouteRates)),
	}
	if !cfg.GlobalRate.Disabled && cfg.GlobalRate.Limit > 0 {
		m.global = limiter.New(store, cfg.GlobalRate.ToLimiterRate())
	}
	if !cfg.APIKeyRate.Disabled && cfg.APIKeyRate.Limit > 0 {
		m.apiKey = limiter.New(store, cfg.APIKeyRate.ToLimiterRate())
	}
	for route, rate := range cfg.RouteRates {
		if rate.Disabled {
			continue
		}
		m.routes[route] = limiter.New(store, rate.ToLimiterRate())
	}
	return m, nil
}

// NewManagerWithMetrics builds the manager and registers the blocked-request
// counter on the given meter.
func NewManagerWithMetrics(
	ctx context.Context,
	cfg *Config,
	redisClient redis.UniversalClient,
	meter metric.Meter,
) (*Manager, error) {
	m, err := NewManager(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	if err := InitMetrics(meter); err != nil {
		logger.FromContext(ctx).Warn("Failed to initialize rate limit metrics", "error", err)
	}
	return m, nil
}

func buildStore(cfg *Config, redisClient redis.UniversalClient) (limiter.Store, error) {
	if redisClient == nil {
		return memory.NewStore(), nil
	}
	store, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix:   cfg.Prefix,
		MaxRetry: cfg.MaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("creating redis rate limit store: %w", err)
	}
	return store, nil
}

// Middleware enforces the configured limits. Excluded paths and IPs bypass
// the limiter entirely; store errors fail open so a limiter outage never
// takes the API down with it.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if m.excluded(path, c.ClientIP()) {
			c.Next()
			return
		}
		lim, key, keyType := m.resolve(c, path)
		if lim == nil {
			c.Next()
			return
		}
		lctx, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			logger.FromContext(c.Request.Context()).Error("rate limit check failed",
				"path", path,
				"error", err,
			)
			c.Next()
			return
		}
		if !m.config.DisableHeaders {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
		}
		if lctx.Reached {
			IncrementBlockedRequests(c.Request.Context(), path, keyType)
			if wait := time.Until(time.Unix(lctx.Reset, 0)); wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "RATE_LIMIT_EXCEEDED",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (m *Manager) excluded(path, ip string) bool {
	for _, excluded := range m.config.ExcludedPaths {
		if strings.HasPrefix(path, excluded) {
			return true
		}
	}
	for _, excluded := range m.config.ExcludedIPs {
		if ip == excluded {
			return true
		}
	}
	return false
}

// resolve picks the limiter and the bucket key for this request. The most
// specific route override wins; requests carrying an API key are throttled
// per key, everything else per client IP.
func (m *Manager) resolve(c *gin.Context, path string) (*limiter.Limiter, string, string) {
	lim := m.global
	scope := "global"
	longest := 0
	for route, routeLim := range m.routes {
		if strings.HasPrefix(path, route) && len(route) > longest {
			lim, scope, longest = routeLim, route, len(route)
		}
	}
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" && m.apiKey != nil {
		if lim == m.global {
			lim = m.apiKey
		}
		return lim, scope + ":key:" + hashKey(apiKey), "api_key"
	}
	return lim, scope + ":ip:" + c.ClientIP(), "ip"
}

// hashKey keeps raw API keys out of the limiter store.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

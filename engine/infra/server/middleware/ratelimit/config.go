package ratelimit

import (
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
)

// Config represents rate limiting configuration
type Config struct {
	// Global rate limit settings
	GlobalRate RateConfig `yaml:"global_rate"`

	// Per-key rate limit for API keys
	APIKeyRate RateConfig `yaml:"api_key_rate"`

	// Per-route rate limits
	RouteRates map[string]RateConfig `yaml:"route_rates"`

	// Dedicated limiter redis; empty reuses the caller's client or the
	// in-memory store
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Options
	Prefix   string `yaml:"prefix"`
	MaxRetry int    `yaml:"max_retry"`

	// Header configuration
	DisableHeaders bool `yaml:"disable_headers"`

	// Exclude patterns
	ExcludedPaths []string `yaml:"excluded_paths"`

	// Excluded IPs
	ExcludedIPs []string `yaml:"excluded_ips"`
}

// RateConfig represents a single rate limit configuration
type RateConfig struct {
	Period   time.Duration `yaml:"period"`
	Limit    int64         `yaml:"limit"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		GlobalRate: RateConfig{
			Limit:  120,
			Period: 1 * time.Minute,
		},
		APIKeyRate: RateConfig{
			Limit:  120,
			Period: 1 * time.Minute,
		},
		RouteRates: map[string]RateConfig{
			// Submission endpoint carries the workflow engine load
			"/api/v0/workflows/executions": {
				Limit:  60,
				Period: 1 * time.Minute,
			},
			// Admin strategy surface sees far less traffic
			"/api/v0/workflows/strategies": {
				Limit:  30,
				Period: 1 * time.Minute,
			},
		},
		Prefix:   "sequentry:ratelimit:",
		MaxRetry: 3,
		ExcludedPaths: []string{
			"/health",
			"/metrics",
			"/api/v0/health",
		},
		ExcludedIPs: []string{},
	}
}

// ToLimiterRate converts RateConfig to limiter.Rate
func (rc RateConfig) ToLimiterRate() limiter.Rate {
	return limiter.Rate{
		Period: rc.Period,
		Limit:  rc.Limit,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GlobalRate.Limit <= 0 {
		return fmt.Errorf("global rate limit must be positive")
	}
	if c.APIKeyRate.Limit < 0 {
		return fmt.Errorf("API key rate limit must not be negative")
	}
	for route, rate := range c.RouteRates {
		if rate.Limit <= 0 {
			return fmt.Errorf("route rate limit for %s must be positive", route)
		}
	}
	return nil
}

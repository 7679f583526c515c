package config

import (
	"context"
	"time"
)

// Config is the complete configuration for the Sequentry engine. Values are
// merged from defaults, an optional YAML file, environment variables, and CLI
// flags, in that precedence order.
type Config struct {
	Server      ServerConfig      `koanf:"server"      validate:"required"`
	Database    DatabaseConfig    `koanf:"database"    validate:"required"`
	Redis       RedisConfig       `koanf:"redis"`
	Runtime     RuntimeConfig     `koanf:"runtime"     validate:"required"`
	Circuits    CircuitsConfig    `koanf:"circuits"    validate:"required"`
	Health      HealthConfig      `koanf:"health"      validate:"required"`
	Workflow    WorkflowConfig    `koanf:"workflow"    validate:"required"`
	Agents      AgentsConfig      `koanf:"agents"`
	Capability  CapabilityConfig  `koanf:"capability"`
	Enforcement EnforcementConfig `koanf:"enforcement"`
	Monitoring  MonitoringConfig  `koanf:"monitoring"`
	RateLimit   RateLimitConfig   `koanf:"ratelimit"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host        string        `koanf:"host"         validate:"required"        env:"SERVER_HOST"`
	Port        int           `koanf:"port"         validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout     time.Duration `koanf:"timeout"                                 env:"SERVER_TIMEOUT"`
	CORSEnabled bool          `koanf:"cors_enabled"                            env:"SERVER_CORS_ENABLED"`
}

// DatabaseConfig contains database connection configuration.
type DatabaseConfig struct {
	ConnString  string          `koanf:"conn_string"  env:"DB_CONN_STRING"`
	Host        string          `koanf:"host"         env:"DB_HOST"`
	Port        string          `koanf:"port"         env:"DB_PORT"`
	User        string          `koanf:"user"         env:"DB_USER"`
	Password    SensitiveString `koanf:"password"     env:"DB_PASSWORD"    sensitive:"true"`
	DBName      string          `koanf:"name"         env:"DB_NAME"`
	SSLMode     string          `koanf:"ssl_mode"     env:"DB_SSL_MODE"`
	AutoMigrate bool            `koanf:"auto_migrate" env:"DB_AUTO_MIGRATE"`
}

// RedisConfig contains redis connection configuration. Redis backs the
// suppression store, the rate limiter, and the engagement metrics pub/sub.
type RedisConfig struct {
	URL         string          `koanf:"url"          env:"REDIS_URL"`
	Host        string          `koanf:"host"         env:"REDIS_HOST"`
	Port        string          `koanf:"port"         env:"REDIS_PORT"`
	Password    SensitiveString `koanf:"password"     env:"REDIS_PASSWORD" sensitive:"true"`
	DB          int             `koanf:"db"           env:"REDIS_DB"`
	PoolSize    int             `koanf:"pool_size"    env:"REDIS_POOL_SIZE"`
	PingTimeout time.Duration   `koanf:"ping_timeout" env:"REDIS_PING_TIMEOUT"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error disabled"  env:"RUNTIME_LOG_LEVEL"`
}

// CircuitsConfig controls circuit execution behavior.
type CircuitsConfig struct {
	DefaultTimeout time.Duration `koanf:"default_timeout" validate:"required" env:"CIRCUITS_DEFAULT_TIMEOUT"`
	GuardCostLimit uint64        `koanf:"guard_cost_limit"                    env:"CIRCUITS_GUARD_COST_LIMIT"`
	GuardCacheSize int           `koanf:"guard_cache_size"                    env:"CIRCUITS_GUARD_CACHE_SIZE"`
}

// HealthConfig holds the production health check thresholds and windows.
// Windows are duration strings that allow day units ("24h", "7d").
type HealthConfig struct {
	SuccessRateThreshold    float64 `koanf:"success_rate_threshold"    validate:"gt=0,lte=1"  env:"HEALTH_SUCCESS_RATE_THRESHOLD"`
	SuccessRateWindow       string  `koanf:"success_rate_window"       validate:"required"    env:"HEALTH_SUCCESS_RATE_WINDOW"`
	MaxDeclineCycles        int     `koanf:"max_decline_cycles"        validate:"min=0"       env:"HEALTH_MAX_DECLINE_CYCLES"`
	BrandViolationThreshold float64 `koanf:"brand_violation_threshold" validate:"gte=0,lte=1" env:"HEALTH_BRAND_VIOLATION_THRESHOLD"`
	BrandViolationWindow    string  `koanf:"brand_violation_window"    validate:"required"    env:"HEALTH_BRAND_VIOLATION_WINDOW"`
	CycleCron               string  `koanf:"cycle_cron"                                       env:"HEALTH_CYCLE_CRON"`
	SchedulerEnabled        bool    `koanf:"scheduler_enabled"                                env:"HEALTH_SCHEDULER_ENABLED"`
}

// WorkflowConfig controls multi-channel coordinator behavior.
type WorkflowConfig struct {
	MaxConcurrent   int64   `koanf:"max_concurrent"   validate:"min=1" env:"WORKFLOW_MAX_CONCURRENT"`
	SubmissionRate  float64 `koanf:"submission_rate"  validate:"gt=0"  env:"WORKFLOW_SUBMISSION_RATE"`
	SubmissionBurst int     `koanf:"submission_burst" validate:"min=1" env:"WORKFLOW_SUBMISSION_BURST"`
	HistoryLimit    int     `koanf:"history_limit"    validate:"min=1" env:"WORKFLOW_HISTORY_LIMIT"`
}

// AgentEndpoint configures one channel agent HTTP endpoint.
type AgentEndpoint struct {
	BaseURL          string        `koanf:"base_url"            env:"BASE_URL"`
	Timeout          time.Duration `koanf:"timeout"             env:"TIMEOUT"`
	RetryCount       int           `koanf:"retry_count"         env:"RETRY_COUNT"`
	RetryWaitTime    time.Duration `koanf:"retry_wait_time"     env:"RETRY_WAIT_TIME"`
	RetryMaxWaitTime time.Duration `koanf:"retry_max_wait_time" env:"RETRY_MAX_WAIT_TIME"`
}

// AgentsConfig configures the channel agents.
type AgentsConfig struct {
	Email  AgentEndpoint `koanf:"email"`
	Social AgentEndpoint `koanf:"social"`
}

// CapabilityConfig configures the circuit decision capability endpoint.
type CapabilityConfig struct {
	BaseURL string        `koanf:"base_url" env:"CAPABILITY_BASE_URL"`
	Timeout time.Duration `koanf:"timeout"  env:"CAPABILITY_TIMEOUT"`
}

// EnforcementConfig configures entrypoint enforcement. When SigningKey is
// empty a random per-process key is generated at startup; chains minted by
// one process are then only valid within it, which is the expected topology.
type EnforcementConfig struct {
	SigningKey SensitiveString `koanf:"signing_key" env:"ENFORCEMENT_SIGNING_KEY" sensitive:"true"`
}

// MonitoringConfig contains metrics exporter configuration.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    validate:"omitempty,startswith=/" env:"MONITORING_PATH"`
}

// RateLimitConfig contains HTTP rate limiting configuration.
type RateLimitConfig struct {
	GlobalRate    RateConfig `koanf:"global_rate"`
	RedisAddr     string     `koanf:"redis_addr"     env:"RATELIMIT_REDIS_ADDR"`
	RedisPassword string     `koanf:"redis_password" env:"RATELIMIT_REDIS_PASSWORD"`
	RedisDB       int        `koanf:"redis_db"       env:"RATELIMIT_REDIS_DB"`
	Prefix        string     `koanf:"prefix"         env:"RATELIMIT_PREFIX"`
	MaxRetry      int        `koanf:"max_retry"      env:"RATELIMIT_MAX_RETRY"`
	ExcludedPaths []string   `koanf:"excluded_paths" env:"RATELIMIT_EXCLUDED_PATHS"`
}

// RateConfig represents a single rate limit.
type RateConfig struct {
	Limit  int64         `koanf:"limit"  env:"LIMIT"`
	Period time.Duration `koanf:"period" env:"PERIOD"`
}

// Service defines the configuration management service interface.
type Service interface {
	// Load loads configuration from the given sources in precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type that provided a configuration key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	// Load reads configuration from the source.
	Load() (map[string]any, error)
	// Type returns the source type identifier.
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Default returns a Config with default values for development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8085,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        "5432",
			User:        "sequentry",
			Password:    "",
			DBName:      "sequentry",
			SSLMode:     "disable",
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        "6379",
			DB:          0,
			PoolSize:    10,
			PingTimeout: 3 * time.Second,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		Circuits: CircuitsConfig{
			DefaultTimeout: 30 * time.Second,
			GuardCostLimit: 1000,
			GuardCacheSize: 1024,
		},
		Health: HealthConfig{
			SuccessRateThreshold:    0.92,
			SuccessRateWindow:       "24h",
			MaxDeclineCycles:        2,
			BrandViolationThreshold: 0.01,
			BrandViolationWindow:    "7d",
			CycleCron:               "@every 15m",
			SchedulerEnabled:        false,
		},
		Workflow: WorkflowConfig{
			MaxConcurrent:   32,
			SubmissionRate:  5,
			SubmissionBurst: 10,
			HistoryLimit:    50,
		},
		Agents: AgentsConfig{
			Email: AgentEndpoint{
				BaseURL:          "http://localhost:9101",
				Timeout:          30 * time.Second,
				RetryCount:       3,
				RetryWaitTime:    100 * time.Millisecond,
				RetryMaxWaitTime: 2 * time.Second,
			},
			Social: AgentEndpoint{
				BaseURL:          "http://localhost:9102",
				Timeout:          30 * time.Second,
				RetryCount:       3,
				RetryWaitTime:    100 * time.Millisecond,
				RetryMaxWaitTime: 2 * time.Second,
			},
		},
		Capability: CapabilityConfig{
			BaseURL: "http://localhost:9100",
			Timeout: 25 * time.Second,
		},
		Monitoring: MonitoringConfig{
			Enabled: false,
			Path:    "/metrics",
		},
		RateLimit: RateLimitConfig{
			GlobalRate: RateConfig{Limit: 120, Period: time.Minute},
			Prefix:     "sequentry:ratelimit:",
			MaxRetry:   3,
			ExcludedPaths: []string{
				"/health",
				"/metrics",
			},
		},
	}
}

// Load loads configuration using the default service. Convenience form for
// tools that only need defaults plus environment.
func Load() (*Config, error) {
	service := NewService()
	return service.Load(context.Background())
}

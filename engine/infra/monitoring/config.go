package monitoring

import (
	"fmt"
	"strings"

	appconfig "github.com/sequentry/sequentry/pkg/config"
)

// Config holds configuration for the monitoring service.
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path"    yaml:"path"`
}

// DefaultConfig returns default monitoring configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Path:    "/metrics",
	}
}

// FromAppConfig builds a monitoring config from the application config.
func FromAppConfig(cfg *appconfig.Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	out := &Config{
		Enabled: cfg.Monitoring.Enabled,
		Path:    cfg.Monitoring.Path,
	}
	if out.Path == "" {
		out.Path = "/metrics"
	}
	return out
}

// Validate validates the monitoring configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if strings.HasPrefix(c.Path, "/api/") {
		return fmt.Errorf("monitoring path cannot be under /api/")
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	return nil
}

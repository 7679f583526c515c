package config

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Manager holds the loaded configuration behind an atomic pointer so readers
// never observe a partially applied config.
type Manager struct {
	Service Service
	current atomic.Value // stores *Config
}

// NewManager creates a new configuration manager.
func NewManager(service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{Service: service}
}

// Load loads configuration from the given sources and makes it current.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	config, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	m.current.Store(config)
	return config, nil
}

// Get returns the current configuration, or nil before the first Load.
func (m *Manager) Get() *Config {
	if config, ok := m.current.Load().(*Config); ok {
		return config
	}
	return nil
}

// Set replaces the current configuration. Used by tests.
func (m *Manager) Set(config *Config) {
	m.current.Store(config)
}

package cache

import (
	"time"

	"github.com/sequentry/sequentry/pkg/config"
)

// Config holds Redis connection and pub/sub behavior settings.
type Config struct {
	URL      string `json:"url,omitempty"       yaml:"url,omitempty"       mapstructure:"url"`
	Host     string `json:"host,omitempty"      yaml:"host,omitempty"      mapstructure:"host"`
	Port     string `json:"port,omitempty"      yaml:"port,omitempty"      mapstructure:"port"`
	Password string `json:"password,omitempty"  yaml:"password,omitempty"  mapstructure:"password"`
	DB       int    `json:"db,omitempty"        yaml:"db,omitempty"        mapstructure:"db"`
	PoolSize int    `json:"pool_size,omitempty" yaml:"pool_size,omitempty" mapstructure:"pool_size"`

	PingTimeout  time.Duration `json:"ping_timeout,omitempty"  yaml:"ping_timeout,omitempty"  mapstructure:"ping_timeout"`
	DialTimeout  time.Duration `json:"dial_timeout,omitempty"  yaml:"dial_timeout,omitempty"  mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty"  yaml:"read_timeout,omitempty"  mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty" mapstructure:"write_timeout"`

	NotificationBufferSize int `json:"notification_buffer_size,omitempty" yaml:"notification_buffer_size,omitempty" mapstructure:"notification_buffer_size"`
}

// FromAppConfig creates a cache Config from the centralized app configuration.
func FromAppConfig(appConfig *config.Config) *Config {
	return &Config{
		URL:         appConfig.Redis.URL,
		Host:        appConfig.Redis.Host,
		Port:        appConfig.Redis.Port,
		Password:    appConfig.Redis.Password.Value(),
		DB:          appConfig.Redis.DB,
		PoolSize:    appConfig.Redis.PoolSize,
		PingTimeout: appConfig.Redis.PingTimeout,
	}
}

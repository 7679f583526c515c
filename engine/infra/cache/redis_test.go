package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sequentry/sequentry/pkg/logger"
)

func testRedisConfig(t *testing.T) *Config {
	t.Helper()
	s := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	return &Config{Host: host, Port: port}
}

func TestNewRedis(t *testing.T) {
	ctx := logger.ContextWithLogger(context.Background(), logger.NewForTests())

	t.Run("Should connect and ping the server", func(t *testing.T) {
		r, err := NewRedis(ctx, testRedisConfig(t))
		require.NoError(t, err)
		defer r.Close()

		assert.NoError(t, r.Ping(ctx).Err())
	})

	t.Run("Should reject nil config", func(t *testing.T) {
		r, err := NewRedis(ctx, nil)
		assert.Nil(t, r)
		assert.Error(t, err)
	})

	t.Run("Should fail when the server is unreachable", func(t *testing.T) {
		cfg := &Config{Host: "127.0.0.1", Port: "1", PingTimeout: 500 * time.Millisecond}
		r, err := NewRedis(ctx, cfg)
		assert.Nil(t, r)
		assert.Error(t, err)
	})

	t.Run("Should pass a full health check cycle", func(t *testing.T) {
		r, err := NewRedis(ctx, testRedisConfig(t))
		require.NoError(t, err)
		defer r.Close()

		assert.NoError(t, r.HealthCheck(ctx))
	})

	t.Run("Should be safe to close twice", func(t *testing.T) {
		r, err := NewRedis(ctx, testRedisConfig(t))
		require.NoError(t, err)

		assert.NoError(t, r.Close())
		assert.NoError(t, r.Close())
	})
}

func TestSetupCache(t *testing.T) {
	ctx := logger.ContextWithLogger(context.Background(), logger.NewForTests())

	t.Run("Should build cache with notification system", func(t *testing.T) {
		c, err := SetupCache(ctx, testRedisConfig(t))
		require.NoError(t, err)
		defer c.Close()

		require.NotNil(t, c.Redis)
		require.NotNil(t, c.Notification)
		assert.NoError(t, c.HealthCheck(ctx))
	})

	t.Run("Should reject nil config", func(t *testing.T) {
		c, err := SetupCache(ctx, nil)
		assert.Nil(t, c)
		assert.Error(t, err)
	})
}

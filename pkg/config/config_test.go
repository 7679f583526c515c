package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Run("Should load default configuration without sources", func(t *testing.T) {
		service := NewService()
		cfg, err := service.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8085, cfg.Server.Port)
		assert.Equal(t, 0.92, cfg.Health.SuccessRateThreshold)
		assert.Equal(t, "24h", cfg.Health.SuccessRateWindow)
		assert.Equal(t, "7d", cfg.Health.BrandViolationWindow)
		assert.Equal(t, 2, cfg.Health.MaxDeclineCycles)
		assert.Equal(t, 30*time.Second, cfg.Circuits.DefaultTimeout)
	})
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Run("Should override defaults from environment variables", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("HEALTH_SUCCESS_RATE_THRESHOLD", "0.95")
		t.Setenv("AGENTS_EMAIL_BASE_URL", "http://agents.internal:9000")

		service := NewService()
		cfg, err := service.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 0.95, cfg.Health.SuccessRateThreshold)
		assert.Equal(t, "http://agents.internal:9000", cfg.Agents.Email.BaseURL)
		assert.Equal(t, SourceEnv, service.GetSource("server.port"))
	})
}

func TestLoad_YAMLSource(t *testing.T) {
	t.Run("Should merge YAML values over defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sequentry.yaml")
		content := []byte("server:\n  port: 7070\nhealth:\n  max_decline_cycles: 3\n")
		require.NoError(t, os.WriteFile(path, content, 0o600))

		service := NewService()
		cfg, err := service.Load(context.Background(), NewYAMLProvider(path))

		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, 3, cfg.Health.MaxDeclineCycles)
		// Untouched keys keep defaults
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	})

	t.Run("Should fail on missing file", func(t *testing.T) {
		service := NewService()
		_, err := service.Load(context.Background(), NewYAMLProvider("/does/not/exist.yaml"))
		require.Error(t, err)
	})
}

func TestLoad_CLIOverridesEnv(t *testing.T) {
	t.Run("Should give CLI flags the highest precedence", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9090")

		service := NewService()
		cfg, err := service.Load(context.Background(), NewCLIProvider(map[string]any{
			"server.port": 6060,
		}))

		require.NoError(t, err)
		assert.Equal(t, 6060, cfg.Server.Port)
		assert.Equal(t, SourceCLI, service.GetSource("server.port"))
	})
}

func TestLoad_Validation(t *testing.T) {
	t.Run("Should reject invalid health window", func(t *testing.T) {
		service := NewService()
		_, err := service.Load(context.Background(), NewCLIProvider(map[string]any{
			"health.success_rate_window": "yesterday",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "success_rate_window")
	})

	t.Run("Should reject out-of-range threshold", func(t *testing.T) {
		service := NewService()
		_, err := service.Load(context.Background(), NewCLIProvider(map[string]any{
			"health.success_rate_threshold": 1.5,
		}))
		require.Error(t, err)
	})

	t.Run("Should accept day units in windows", func(t *testing.T) {
		service := NewService()
		cfg, err := service.Load(context.Background(), NewCLIProvider(map[string]any{
			"health.brand_violation_window": "14d",
		}))
		require.NoError(t, err)
		assert.Equal(t, "14d", cfg.Health.BrandViolationWindow)
	})
}

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact in string and JSON output", func(t *testing.T) {
		secret := SensitiveString("super-secret")
		assert.Equal(t, "[REDACTED]", secret.String())
		assert.Equal(t, "super-secret", secret.Value())

		data, err := secret.MarshalJSON()
		require.NoError(t, err)
		assert.NotContains(t, string(data), "super-secret")
	})

	t.Run("Should decode from loader into SensitiveString", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "hunter2")
		service := NewService()
		cfg, err := service.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "hunter2", cfg.Database.Password.Value())
	})
}

func TestManagerContext(t *testing.T) {
	t.Run("Should round-trip manager through context", func(t *testing.T) {
		manager := NewManager(NewService())
		_, err := manager.Load(context.Background())
		require.NoError(t, err)

		ctx := ContextWithManager(context.Background(), manager)
		cfg := FromContext(ctx)
		require.NotNil(t, cfg)
		assert.Equal(t, manager.Get(), cfg)
	})

	t.Run("Should fall back to defaults without manager", func(t *testing.T) {
		cfg := FromContext(context.Background())
		require.NotNil(t, cfg)
		assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	})
}

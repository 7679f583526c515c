package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Run("Should register serve, config, and version subcommands", func(t *testing.T) {
		root := RootCmd()
		names := make([]string, 0, len(root.Commands()))
		for _, sub := range root.Commands() {
			names = append(names, sub.Name())
		}
		assert.Contains(t, names, "serve")
		assert.Contains(t, names, "config")
		assert.Contains(t, names, "version")
	})
}

func Test_extractCLIFlags(t *testing.T) {
	t.Run("Should map changed flags to dotted configuration paths", func(t *testing.T) {
		cmd := ServeCmd()
		require.NoError(t, cmd.Flags().Set("host", "10.0.0.5"))
		require.NoError(t, cmd.Flags().Set("port", "9000"))
		require.NoError(t, cmd.Flags().Set("cors", "true"))
		require.NoError(t, cmd.Flags().Set("db-name", "sequentry_test"))
		require.NoError(t, cmd.Flags().Set("log-level", "debug"))

		flags := make(map[string]any)
		extractCLIFlags(cmd, flags)

		assert.Equal(t, "10.0.0.5", flags["server.host"])
		assert.Equal(t, 9000, flags["server.port"])
		assert.Equal(t, true, flags["server.cors_enabled"])
		assert.Equal(t, "sequentry_test", flags["database.name"])
		assert.Equal(t, "debug", flags["runtime.log_level"])
	})
	t.Run("Should skip flags left at their defaults", func(t *testing.T) {
		cmd := ServeCmd()
		flags := make(map[string]any)
		extractCLIFlags(cmd, flags)
		assert.Empty(t, flags)
	})
}

func Test_loadEnvFile(t *testing.T) {
	t.Run("Should load variables from the env file", func(t *testing.T) {
		dir := t.TempDir()
		envPath := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(envPath, []byte("SEQUENTRY_TEST_ENV_VAR=loaded\n"), 0o600))
		t.Chdir(dir)

		cmd := ServeCmd()
		require.NoError(t, cmd.Flags().Set("env-file", ".env"))

		path, err := loadEnvFile(cmd)
		require.NoError(t, err)
		assert.NotEmpty(t, path)
		assert.Equal(t, "loaded", os.Getenv("SEQUENTRY_TEST_ENV_VAR"))
		t.Cleanup(func() { os.Unsetenv("SEQUENTRY_TEST_ENV_VAR") })
	})
	t.Run("Should return the resolved path when the file does not exist", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cmd := ServeCmd()
		require.NoError(t, cmd.Flags().Set("env-file", "missing.env"))

		path, err := loadEnvFile(cmd)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(path))
	})
	t.Run("Should reject a path outside the working directory", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cmd := ServeCmd()
		require.NoError(t, cmd.Flags().Set("env-file", "/etc/hosts"))

		_, err := loadEnvFile(cmd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the project directory")
	})
	t.Run("Should skip loading when the flag is empty", func(t *testing.T) {
		cmd := ServeCmd()
		require.NoError(t, cmd.Flags().Set("env-file", ""))

		path, err := loadEnvFile(cmd)
		require.NoError(t, err)
		assert.Empty(t, path)
	})
}

func Test_configSources(t *testing.T) {
	t.Run("Should stack YAML below explicitly set CLI flags", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "sequentry.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 9090\n"), 0o600))

		cmd := ServeCmd()
		require.NoError(t, cmd.Flags().Set("port", "9999"))

		sources := configSources(cmd, cfgPath)
		require.Len(t, sources, 2)
	})
	t.Run("Should return no sources when nothing is set", func(t *testing.T) {
		sources := configSources(ServeCmd(), "")
		assert.Empty(t, sources)
	})
}

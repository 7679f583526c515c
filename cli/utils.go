package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// extractCLIFlags collects explicitly set flags as dotted configuration paths
// so they override every other source.
func extractCLIFlags(cmd *cobra.Command, flags map[string]any) {
	addFlag := func(flagName, key string, getter func(string) (any, error)) {
		if cmd.Flags().Changed(flagName) {
			if value, err := getter(flagName); err == nil {
				flags[key] = value
			}
		}
	}

	getString := func(name string) (any, error) { return cmd.Flags().GetString(name) }
	getInt := func(name string) (any, error) { return cmd.Flags().GetInt(name) }
	getBool := func(name string) (any, error) { return cmd.Flags().GetBool(name) }

	flagDefs := []struct {
		flagName string
		key      string
		getter   func(string) (any, error)
	}{
		// Server flags
		{"host", "server.host", getString},
		{"port", "server.port", getInt},
		{"cors", "server.cors_enabled", getBool},

		// Database flags
		{"db-conn-string", "database.conn_string", getString},
		{"db-host", "database.host", getString},
		{"db-port", "database.port", getString},
		{"db-user", "database.user", getString},
		{"db-password", "database.password", getString},
		{"db-name", "database.name", getString},
		{"db-ssl-mode", "database.ssl_mode", getString},

		// Redis flags
		{"redis-url", "redis.url", getString},
		{"redis-host", "redis.host", getString},
		{"redis-port", "redis.port", getString},

		// Logging flags
		{"log-level", "runtime.log_level", getString},
	}

	for _, def := range flagDefs {
		addFlag(def.flagName, def.key, def.getter)
	}
}

// loadEnvFile loads environment variables from a file with path validation.
// A missing file is not an error; a path outside the working directory is.
func loadEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return envFile, nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(pwd, envFile)
	}
	absPath, err := filepath.Abs(filepath.Clean(envFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve env file path: %w", err)
	}
	if !isPathWithinDirectory(absPath, pwd) {
		return "", fmt.Errorf("env file path '%s' is outside the project directory", envFile)
	}
	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return absPath, nil
		}
		return "", fmt.Errorf("failed to stat env file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return "", fmt.Errorf("env file path '%s' is not a regular file", envFile)
	}
	if err := godotenv.Load(absPath); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", absPath, err)
	}
	return absPath, nil
}

// isPathWithinDirectory checks if a given path is within the specified directory
func isPathWithinDirectory(path, dir string) bool {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return false
	}
	if !strings.HasSuffix(absDir, string(filepath.Separator)) {
		absDir += string(filepath.Separator)
	}
	return strings.HasPrefix(absPath, absDir) || absPath == strings.TrimSuffix(absDir, string(filepath.Separator))
}

package cli

import (
	"context"
	"fmt"

	"github.com/sequentry/sequentry/engine/infra/server"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Sequentry API server",
		RunE:  handleServeCmd,
	}

	defaults := config.Default()

	// Server configuration flags
	cmd.Flags().String("host", defaults.Server.Host, "Host to bind the server to")
	cmd.Flags().Int("port", defaults.Server.Port, "Port to run the server on")
	cmd.Flags().Bool("cors", defaults.Server.CORSEnabled, "Enable CORS")
	cmd.Flags().String("config", "", "Path to the configuration file")
	cmd.Flags().String("env-file", defaultEnvFile, "Path to the environment variables file")

	// Database configuration flags
	cmd.Flags().String("db-conn-string", "", "Database connection string (env: DB_CONN_STRING)")
	cmd.Flags().String("db-host", "", "Database host (env: DB_HOST)")
	cmd.Flags().String("db-port", "", "Database port (env: DB_PORT)")
	cmd.Flags().String("db-user", "", "Database user (env: DB_USER)")
	cmd.Flags().String("db-password", "", "Database password (env: DB_PASSWORD)")
	cmd.Flags().String("db-name", "", "Database name (env: DB_NAME)")
	cmd.Flags().String("db-ssl-mode", "", "Database SSL mode (env: DB_SSL_MODE)")

	// Redis configuration flags
	cmd.Flags().String("redis-url", "", "Redis connection URL (env: REDIS_URL)")
	cmd.Flags().String("redis-host", "", "Redis host (env: REDIS_HOST)")
	cmd.Flags().String("redis-port", "", "Redis port (env: REDIS_PORT)")

	// Logging configuration flags
	cmd.Flags().String("log-level", defaults.Runtime.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().Bool("log-json", false, "Output logs in JSON format")
	cmd.Flags().Bool("log-source", false, "Include source file and line in logs")
	cmd.Flags().Bool("debug", false, "Enable debug mode (sets log level to debug)")

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		debug, err := cmd.Flags().GetBool("debug")
		if err != nil {
			return fmt.Errorf("failed to get debug flag: %w", err)
		}
		if debug {
			return cmd.Flags().Set("log-level", "debug")
		}
		return nil
	}

	return cmd
}

// setupServeEnvironment loads the env file and installs the process logger.
func setupServeEnvironment(cmd *cobra.Command) (context.Context, error) {
	if _, err := loadEnvFile(cmd); err != nil {
		return nil, err
	}
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)
	return logger.ContextWithLogger(context.Background(), log), nil
}

// configSources builds the layered configuration sources for a command.
// Defaults and environment variables are always applied by the loader; the
// YAML file and explicitly set CLI flags stack on top.
func configSources(cmd *cobra.Command, configFile string) []config.Source {
	var sources []config.Source
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	cliFlags := make(map[string]any)
	extractCLIFlags(cmd, cliFlags)
	if len(cliFlags) > 0 {
		sources = append(sources, config.NewCLIProvider(cliFlags))
	}
	return sources
}

func handleServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, err := setupServeEnvironment(cmd)
	if err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	manager := config.NewManager(config.NewService())
	cfg, err := manager.Load(ctx, configSources(cmd, configFile)...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx = config.ContextWithManager(ctx, manager)

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		return err
	}
	return srv.Run()
}

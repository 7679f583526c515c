package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sequentry/sequentry/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management and diagnostics",
	}

	cmd.AddCommand(
		configShowCmd(),
		configValidateCmd(),
	)

	return cmd
}

// configShowCmd shows the current configuration with source information
func configShowCmd() *cobra.Command {
	var (
		format      string
		showSources bool
		configFile  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration values and their sources",
		Long: `Display the current configuration with optional source information.
This command shows which source (CLI, YAML, environment, or default) provided each value.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, configFile, format, showSources)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (json, yaml, table)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Show configuration sources")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to configuration file")
	cmd.Flags().String("env-file", defaultEnvFile, "Path to environment file")
	return cmd
}

func runConfigShow(cmd *cobra.Command, configFile, format string, showSources bool) error {
	ctx := context.Background()
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	cfg, sources, err := loadConfigWithSources(ctx, cmd, configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	switch format {
	case "json":
		return outputJSON(cfg, sources, showSources)
	case "yaml":
		return outputYAML(cfg, sources, showSources)
	case "table":
		return outputTable(cfg, sources, showSources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// configValidateCmd validates configuration files
func configValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long:  `Validate a configuration file for syntax errors and required fields.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			if _, err := loadEnvFile(cmd); err != nil {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			service := config.NewService()
			cfg, err := service.Load(ctx, configSources(cmd, configFile)...)
			if err != nil {
				return fmt.Errorf("configuration loading failed: %w", err)
			}
			if err := service.Validate(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Println("✅ Configuration is valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to configuration file")
	cmd.Flags().String("env-file", defaultEnvFile, "Path to environment file")
	return cmd
}

// loadConfigWithSources loads configuration and tracks which source set each
// non-default key.
func loadConfigWithSources(
	ctx context.Context,
	cmd *cobra.Command,
	configFile string,
) (*config.Config, map[string]config.SourceType, error) {
	service := config.NewService()
	cfg, err := service.Load(ctx, configSources(cmd, configFile)...)
	if err != nil {
		return nil, nil, err
	}
	sourceMap := make(map[string]config.SourceType)
	for key := range flattenConfig(cfg) {
		if source := service.GetSource(key); source != config.SourceDefault {
			sourceMap[key] = source
		}
	}
	return cfg, sourceMap, nil
}

// outputJSON outputs configuration as JSON
func outputJSON(cfg *config.Config, sources map[string]config.SourceType, showSources bool) error {
	output := make(map[string]any)
	output["config"] = cfg
	if showSources && len(sources) > 0 {
		output["sources"] = sources
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// outputYAML outputs configuration as YAML
func outputYAML(cfg *config.Config, sources map[string]config.SourceType, showSources bool) error {
	output := make(map[string]any)
	output["config"] = flattenConfig(cfg)
	if showSources && len(sources) > 0 {
		output["sources"] = sources
	}

	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	return encoder.Encode(output)
}

// outputTable outputs configuration as a table
func outputTable(cfg *config.Config, sources map[string]config.SourceType, showSources bool) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	flatMap := flattenConfig(cfg)
	keys := make([]string, 0, len(flatMap))
	for k := range flatMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if showSources {
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
		fmt.Fprintln(w, "---\t-----\t------")
	} else {
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
	}

	for _, key := range keys {
		value := flatMap[key]
		if showSources {
			source := sources[key]
			if source == "" {
				source = config.SourceDefault
			}
			fmt.Fprintf(w, "%s\t%v\t%s\n", key, value, source)
		} else {
			fmt.Fprintf(w, "%s\t%v\n", key, value)
		}
	}

	return nil
}

// flattenConfig converts the nested config to a flat key-value map with
// secrets redacted.
func flattenConfig(cfg *config.Config) map[string]string {
	result := make(map[string]string)
	flattenServerConfig(cfg, result)
	flattenDatabaseConfig(cfg, result)
	flattenRedisConfig(cfg, result)
	flattenRuntimeConfig(cfg, result)
	flattenCircuitsConfig(cfg, result)
	flattenHealthConfig(cfg, result)
	flattenWorkflowConfig(cfg, result)
	flattenAgentsConfig(cfg, result)
	flattenEnforcementConfig(cfg, result)
	flattenMonitoringConfig(cfg, result)
	flattenRateLimitConfig(cfg, result)
	return result
}

func flattenServerConfig(cfg *config.Config, result map[string]string) {
	result["server.host"] = cfg.Server.Host
	result["server.port"] = fmt.Sprintf("%d", cfg.Server.Port)
	result["server.cors_enabled"] = fmt.Sprintf("%v", cfg.Server.CORSEnabled)
	result["server.timeout"] = cfg.Server.Timeout.String()
}

func flattenDatabaseConfig(cfg *config.Config, result map[string]string) {
	if cfg.Database.ConnString != "" {
		result["database.conn_string"] = redactURL(cfg.Database.ConnString)
	}
	result["database.host"] = cfg.Database.Host
	result["database.port"] = cfg.Database.Port
	result["database.user"] = cfg.Database.User
	result["database.password"] = cfg.Database.Password.String()
	result["database.name"] = cfg.Database.DBName
	result["database.ssl_mode"] = cfg.Database.SSLMode
	result["database.auto_migrate"] = fmt.Sprintf("%v", cfg.Database.AutoMigrate)
}

func flattenRedisConfig(cfg *config.Config, result map[string]string) {
	if cfg.Redis.URL != "" {
		result["redis.url"] = redactURL(cfg.Redis.URL)
	}
	result["redis.host"] = cfg.Redis.Host
	result["redis.port"] = cfg.Redis.Port
	result["redis.password"] = cfg.Redis.Password.String()
	result["redis.db"] = fmt.Sprintf("%d", cfg.Redis.DB)
	result["redis.pool_size"] = fmt.Sprintf("%d", cfg.Redis.PoolSize)
}

func flattenRuntimeConfig(cfg *config.Config, result map[string]string) {
	result["runtime.environment"] = cfg.Runtime.Environment
	result["runtime.log_level"] = cfg.Runtime.LogLevel
}

func flattenCircuitsConfig(cfg *config.Config, result map[string]string) {
	result["circuits.default_timeout"] = cfg.Circuits.DefaultTimeout.String()
	result["circuits.guard_cost_limit"] = fmt.Sprintf("%d", cfg.Circuits.GuardCostLimit)
	result["circuits.guard_cache_size"] = fmt.Sprintf("%d", cfg.Circuits.GuardCacheSize)
}

func flattenHealthConfig(cfg *config.Config, result map[string]string) {
	result["health.success_rate_threshold"] = fmt.Sprintf("%g", cfg.Health.SuccessRateThreshold)
	result["health.success_rate_window"] = cfg.Health.SuccessRateWindow
	result["health.max_decline_cycles"] = fmt.Sprintf("%d", cfg.Health.MaxDeclineCycles)
	result["health.brand_violation_threshold"] = fmt.Sprintf("%g", cfg.Health.BrandViolationThreshold)
	result["health.brand_violation_window"] = cfg.Health.BrandViolationWindow
	result["health.cycle_cron"] = cfg.Health.CycleCron
	result["health.scheduler_enabled"] = fmt.Sprintf("%v", cfg.Health.SchedulerEnabled)
}

func flattenWorkflowConfig(cfg *config.Config, result map[string]string) {
	result["workflow.max_concurrent"] = fmt.Sprintf("%d", cfg.Workflow.MaxConcurrent)
	result["workflow.submission_rate"] = fmt.Sprintf("%g", cfg.Workflow.SubmissionRate)
	result["workflow.submission_burst"] = fmt.Sprintf("%d", cfg.Workflow.SubmissionBurst)
	result["workflow.history_limit"] = fmt.Sprintf("%d", cfg.Workflow.HistoryLimit)
}

func flattenAgentsConfig(cfg *config.Config, result map[string]string) {
	result["agents.email.base_url"] = cfg.Agents.Email.BaseURL
	result["agents.email.timeout"] = cfg.Agents.Email.Timeout.String()
	result["agents.social.base_url"] = cfg.Agents.Social.BaseURL
	result["agents.social.timeout"] = cfg.Agents.Social.Timeout.String()
}

func flattenEnforcementConfig(cfg *config.Config, result map[string]string) {
	result["capability.base_url"] = cfg.Capability.BaseURL
	result["capability.timeout"] = cfg.Capability.Timeout.String()
	result["enforcement.signing_key"] = cfg.Enforcement.SigningKey.String()
}

func flattenMonitoringConfig(cfg *config.Config, result map[string]string) {
	result["monitoring.enabled"] = fmt.Sprintf("%v", cfg.Monitoring.Enabled)
	result["monitoring.path"] = cfg.Monitoring.Path
}

func flattenRateLimitConfig(cfg *config.Config, result map[string]string) {
	result["ratelimit.global_rate.limit"] = fmt.Sprintf("%d", cfg.RateLimit.GlobalRate.Limit)
	result["ratelimit.global_rate.period"] = cfg.RateLimit.GlobalRate.Period.String()
	result["ratelimit.prefix"] = cfg.RateLimit.Prefix
	result["ratelimit.max_retry"] = fmt.Sprintf("%d", cfg.RateLimit.MaxRetry)
}

// redactURL redacts credentials embedded in connection URLs.
func redactURL(urlStr string) string {
	if strings.Contains(urlStr, "://") && strings.Contains(urlStr, "@") {
		protocolEnd := strings.Index(urlStr, "://") + 3
		atIndex := strings.Index(urlStr, "@")
		if atIndex > protocolEnd {
			return urlStr[:protocolEnd] + "[REDACTED]@" + urlStr[atIndex+1:]
		}
	}
	return urlStr
}

package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// loader implements the Service interface for configuration management.
type loader struct {
	koanf      *koanf.Koanf
	validator  *validator.Validate
	metadata   Metadata
	metadataMu sync.RWMutex
}

// Metadata tracks which source provided each configuration key.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// NewService creates a new configuration service.
func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		metadata:  Metadata{Sources: make(map[string]SourceType)},
	}
}

// Load merges configuration in precedence order: defaults, YAML sources,
// environment variables, CLI sources. Later sources win.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")
	l.metadataMu.Lock()
	l.metadata = Metadata{Sources: make(map[string]SourceType), LoadedAt: time.Now()}
	l.metadataMu.Unlock()

	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	if err := l.loadSources(sources, SourceYAML); err != nil {
		return nil, err
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	if err := l.loadSources(sources, SourceCLI); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

func (l *loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load default configuration: %w", err)
	}
	for _, key := range l.koanf.Keys() {
		l.trackSource(key, SourceDefault)
	}
	return nil
}

func (l *loader) loadEnvironment() error {
	keysBefore := l.snapshotKeys()
	envToPath := envMappings()
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			if configPath, exists := envToPath[key]; exists {
				return configPath, value
			}
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	l.trackChanged(keysBefore, SourceEnv)
	return nil
}

func (l *loader) loadSources(sources []Source, want SourceType) error {
	for _, source := range sources {
		if source == nil || source.Type() != want {
			continue
		}
		if err := l.loadSource(source); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if len(data) == 0 {
		return nil
	}
	keysBefore := l.snapshotKeys()
	// Merge only the keys present in the source so unset keys keep their
	// previously merged values.
	for key, value := range flattenMap("", data) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
	}
	l.trackChanged(keysBefore, source.Type())
	return nil
}

func (l *loader) snapshotKeys() map[string]any {
	keys := make(map[string]any)
	for _, key := range l.koanf.Keys() {
		keys[key] = l.koanf.Get(key)
	}
	return keys
}

func (l *loader) trackChanged(before map[string]any, source SourceType) {
	for _, key := range l.koanf.Keys() {
		valBefore, existed := before[key]
		valAfter := l.koanf.Get(key)
		if !existed || !reflect.DeepEqual(valBefore, valAfter) {
			l.trackSource(key, source)
		}
	}
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks if the configuration meets all validation requirements.
func (l *loader) Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(config); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCustom(config)
}

// GetSource returns the source type that provided a configuration key.
func (l *loader) GetSource(key string) SourceType {
	l.metadataMu.RLock()
	defer l.metadataMu.RUnlock()
	if source, ok := l.metadata.Sources[key]; ok {
		return source
	}
	return SourceDefault
}

func (l *loader) trackSource(key string, source SourceType) {
	l.metadataMu.Lock()
	defer l.metadataMu.Unlock()
	l.metadata.Sources[key] = source
}

func validateCustom(config *Config) error {
	if config.Database.ConnString == "" {
		if config.Database.Host == "" || config.Database.Port == "" ||
			config.Database.User == "" || config.Database.DBName == "" {
			return fmt.Errorf(
				"database configuration incomplete: either conn_string or individual components required",
			)
		}
	}
	if _, err := str2duration.ParseDuration(config.Health.SuccessRateWindow); err != nil {
		return fmt.Errorf("invalid health success_rate_window %q: %w", config.Health.SuccessRateWindow, err)
	}
	if _, err := str2duration.ParseDuration(config.Health.BrandViolationWindow); err != nil {
		return fmt.Errorf("invalid health brand_violation_window %q: %w", config.Health.BrandViolationWindow, err)
	}
	if config.Health.CycleCron != "" {
		if _, err := cron.ParseStandard(config.Health.CycleCron); err != nil {
			return fmt.Errorf("invalid health cycle_cron %q: %w", config.Health.CycleCron, err)
		}
	}
	return nil
}

// sensitiveStringDecodeHook converts strings to SensitiveString during
// unmarshaling.
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

// envMappings builds the environment variable to config path lookup from
// struct tags. Top-level section fields use their explicit env tag; nested
// struct fields get a composed name derived from their path, e.g.
// agents.email.base_url -> AGENTS_EMAIL_BASE_URL.
func envMappings() map[string]string {
	mappingsOnce.Do(func() {
		cachedMappings = make(map[string]string)
		collectMappings(reflect.TypeOf(Config{}), "", cachedMappings)
	})
	return cachedMappings
}

var (
	cachedMappings map[string]string
	mappingsOnce   sync.Once
)

func collectMappings(t reflect.Type, path string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}
		configPath := koanfTag
		if path != "" {
			configPath = path + "." + koanfTag
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			collectMappings(field.Type, configPath, out)
			continue
		}
		composed := strings.ToUpper(strings.ReplaceAll(configPath, ".", "_"))
		out[composed] = configPath
		if envTag := field.Tag.Get("env"); envTag != "" && envTag != "-" {
			if _, taken := out[envTag]; !taken {
				out[envTag] = configPath
			}
		}
	}
}

// transformEnvKey converts unmapped environment variable names to koanf
// paths: LIMITS_MAX_NESTING_DEPTH -> limits.max_nesting_depth.
func transformEnvKey(s string) string {
	s = strings.ToLower(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

// flattenMap flattens a nested map into dot-notation keys.
func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
		} else {
			result[key] = v
		}
	}
	return result
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlProvider loads configuration from a YAML file.
type yamlProvider struct {
	path string
}

// NewYAMLProvider creates a configuration source backed by a YAML file.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	if y.path == "" {
		return map[string]any{}, nil
	}
	raw, err := os.ReadFile(y.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", y.path, err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", y.path, err)
	}
	return data, nil
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// cliProvider exposes CLI flags as a configuration source. Keys are dotted
// config paths ("server.port").
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider creates a configuration source from resolved CLI flags.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{flags: flags}
}

func (c *cliProvider) Load() (map[string]any, error) {
	if c.flags == nil {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(c.flags))
	for key, value := range c.flags {
		out[key] = value
	}
	return out, nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}

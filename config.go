package llmstream

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportProcess = "process"
	TransportHTTP    = "http"
)

// Config is the top-level gateway configuration.
type Config struct {
	DefaultModel      string                    `yaml:"default_model"`
	SystemInstruction string                    `yaml:"system_instruction"`
	ModifyInstruction string                    `yaml:"modify_instruction"`
	Temperature       *float64                  `yaml:"temperature"`
	Separator         *string                   `yaml:"separator"`
	Transport         TransportConfig           `yaml:"transport"`
	Providers         map[string]ProviderConfig `yaml:"providers"`
	Models            []ModelConfig             `yaml:"models"`
}

// TransportConfig selects how requests reach the network.
type TransportConfig struct {
	Kind    string   `yaml:"kind"`    // "process" (default) or "http"
	Command string   `yaml:"command"` // process only, default "curl"
	Args    []string `yaml:"args"`    // extra arguments placed before the generated ones
}

// ProviderConfig overrides a provider's endpoint or credential variable.
type ProviderConfig struct {
	Endpoint      string `yaml:"endpoint"`
	CredentialEnv string `yaml:"credential_env"`
}

// ModelConfig defines one catalog entry.
type ModelConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("llmstream: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("llmstream: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
// An empty model list is valid and means the built-in catalog.
func (c Config) Validate() error {
	ids := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("llmstream: config: models[%d]: id is required", i)
		}
		if m.Provider == "" {
			return fmt.Errorf("llmstream: config: models[%d] (%s): provider is required", i, m.ID)
		}
		if ids[m.ID] {
			return fmt.Errorf("llmstream: config: duplicate model id %q", m.ID)
		}
		ids[m.ID] = true
	}

	if c.DefaultModel != "" && len(c.Models) > 0 && !ids[c.DefaultModel] {
		return fmt.Errorf("llmstream: config: default_model %q is not in models", c.DefaultModel)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("llmstream: config: temperature %v out of range [0, 2]", *c.Temperature)
	}

	switch c.Transport.Kind {
	case "", TransportProcess, TransportHTTP:
	default:
		return fmt.Errorf("llmstream: config: invalid transport kind %q", c.Transport.Kind)
	}

	return nil
}

// ApplyDefaultModel makes DefaultModel the active entry of reg.
// An empty DefaultModel leaves reg unchanged.
func (c Config) ApplyDefaultModel(reg *Registry) error {
	if c.DefaultModel == "" {
		return nil
	}
	if !reg.SetActive(c.DefaultModel) {
		return fmt.Errorf("%w: default_model %q", ErrModelNotFound, c.DefaultModel)
	}
	return nil
}

// Options returns the Gateway options implied by the config.
func (c Config) Options() []Option {
	var opts []Option
	if c.SystemInstruction != "" {
		opts = append(opts, WithSystemInstruction(c.SystemInstruction))
	}
	if c.ModifyInstruction != "" {
		opts = append(opts, WithModifyInstruction(c.ModifyInstruction))
	}
	if c.Temperature != nil {
		opts = append(opts, WithTemperature(*c.Temperature))
	}
	if c.Separator != nil {
		opts = append(opts, WithSeparator(*c.Separator))
	}
	return opts
}

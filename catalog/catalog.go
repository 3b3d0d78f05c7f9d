// Package catalog defines the built-in model catalog and builds catalogs
// from configuration.
package catalog

import (
	"fmt"

	"github.com/ineyio/llmstream"
	"github.com/ineyio/llmstream/provider/anthropic"
	"github.com/ineyio/llmstream/provider/openaicompat"
)

// Provider tags accepted in configuration.
const (
	OpenAI    = "openai"
	Mistral   = "mistral"
	Anthropic = "anthropic"
)

var defaultModels = []llmstream.ModelConfig{
	{ID: "gpt-4o", Name: "GPT-4o", Provider: OpenAI},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: OpenAI},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: OpenAI},
	{ID: "mistral-large-latest", Name: "Mistral Large", Provider: Mistral},
	{ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet", Provider: Anthropic},
}

// Default returns the built-in catalog. Models of one provider share a
// single descriptor.
func Default() []llmstream.ModelEntry {
	entries, err := Build(defaultModels, nil)
	if err != nil {
		panic(err) // static data
	}
	return entries
}

// FromConfig builds the catalog described by cfg, or the built-in one when
// cfg lists no models.
func FromConfig(cfg llmstream.Config) ([]llmstream.ModelEntry, error) {
	models := cfg.Models
	if len(models) == 0 {
		models = defaultModels
	}
	return Build(models, cfg.Providers)
}

// Build resolves provider tags and creates one descriptor per tag.
func Build(models []llmstream.ModelConfig, overrides map[string]llmstream.ProviderConfig) ([]llmstream.ModelEntry, error) {
	providers := make(map[string]llmstream.Provider)
	entries := make([]llmstream.ModelEntry, 0, len(models))

	for i, m := range models {
		prov, ok := providers[m.Provider]
		if !ok {
			var err error
			prov, err = NewProvider(m.Provider, overrides[m.Provider])
			if err != nil {
				return nil, fmt.Errorf("catalog: models[%d] (%s): %w", i, m.ID, err)
			}
			providers[m.Provider] = prov
		}

		name := m.Name
		if name == "" {
			name = m.ID
		}
		entries = append(entries, llmstream.ModelEntry{ID: m.ID, DisplayName: name, Provider: prov})
	}
	return entries, nil
}

// NewProvider creates the descriptor for a provider tag.
func NewProvider(tag string, cfg llmstream.ProviderConfig) (llmstream.Provider, error) {
	switch tag {
	case OpenAI, Mistral:
		var opts []openaicompat.Option
		if cfg.Endpoint != "" {
			opts = append(opts, openaicompat.WithEndpoint(cfg.Endpoint))
		}
		if cfg.CredentialEnv != "" {
			opts = append(opts, openaicompat.WithCredentialEnv(cfg.CredentialEnv))
		}
		if tag == Mistral {
			return openaicompat.NewMistral(opts...), nil
		}
		return openaicompat.NewOpenAI(opts...), nil
	case Anthropic:
		var opts []anthropic.Option
		if cfg.Endpoint != "" {
			opts = append(opts, anthropic.WithEndpoint(cfg.Endpoint))
		}
		if cfg.CredentialEnv != "" {
			opts = append(opts, anthropic.WithCredentialEnv(cfg.CredentialEnv))
		}
		return anthropic.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", tag)
	}
}

package llmstream

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CredentialSource resolves a credential by environment variable name.
type CredentialSource func(key string) (string, bool)

// EnvCredentials reads credentials from the process environment.
func EnvCredentials(key string) (string, bool) {
	return os.LookupEnv(key)
}

// RequestBuilder turns a prompt into a provider-specific Request.
type RequestBuilder struct {
	registry    *Registry
	credentials CredentialSource
}

// NewRequestBuilder creates a RequestBuilder. A nil source reads the environment.
func NewRequestBuilder(registry *Registry, credentials CredentialSource) *RequestBuilder {
	if credentials == nil {
		credentials = EnvCredentials
	}
	return &RequestBuilder{registry: registry, credentials: credentials}
}

// Build resolves modelID and encodes a one-shot system+user exchange.
// The credential is read on every call and never retained.
func (b *RequestBuilder) Build(modelID, instruction, prompt string, temperature float64) (Request, error) {
	entry, ok := b.registry.Lookup(modelID)
	if !ok {
		return Request{}, fmt.Errorf("%w: %q", ErrModelNotFound, modelID)
	}
	return b.BuildFor(entry, instruction, prompt, temperature)
}

// BuildFor is Build for an already resolved entry.
func (b *RequestBuilder) BuildFor(entry ModelEntry, instruction, prompt string, temperature float64) (Request, error) {
	prov := entry.Provider

	key := prov.CredentialEnv()
	credential, _ := b.credentials(key)
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Request{}, fmt.Errorf("%w: %s is not set", ErrCredentialMissing, key)
	}

	messages := []Message{
		{Role: RoleSystem, Content: strings.TrimSpace(instruction)},
		{Role: RoleUser, Content: strings.TrimSpace(prompt)},
	}

	body, err := json.Marshal(prov.BuildRequestBody(entry.ID, messages, temperature))
	if err != nil {
		return Request{}, fmt.Errorf("llmstream: marshal request: %w", err)
	}

	return Request{
		Model:    entry.ID,
		Provider: prov.Name(),
		URL:      prov.Endpoint(),
		Headers:  prov.BuildHeaders(credential),
		Body:     body,
	}, nil
}

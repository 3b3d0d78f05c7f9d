// Package anthropic provides the Anthropic Messages API descriptor.
//
// Requests carry the system instruction in a top-level "system" field and
// only the remaining turns in "messages". Stream events are typed; text
// arrives in content_block_delta events.
package anthropic

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/ineyio/llmstream"
)

const (
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	defaultVersion  = "2023-06-01"

	eventContentDelta = "content_block_delta"
	eventError        = "error"
)

// Provider is the Anthropic descriptor.
type Provider struct {
	endpoint      string
	credentialEnv string
	version       string
	maxTokens     int
}

var (
	_ llmstream.Provider     = (*Provider)(nil)
	_ llmstream.ErrorDecoder = (*Provider)(nil)
)

// Option configures the provider.
type Option func(*Provider)

// WithEndpoint overrides the messages URL.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithCredentialEnv overrides the environment variable holding the API key.
func WithCredentialEnv(key string) Option {
	return func(p *Provider) { p.credentialEnv = key }
}

// WithVersion sets the anthropic-version header.
func WithVersion(v string) Option {
	return func(p *Provider) { p.version = v }
}

// WithMaxTokens sets max_tokens (default llmstream.DefaultMaxTokens).
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// New creates an Anthropic provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		endpoint:      defaultEndpoint,
		credentialEnv: "ANTHROPIC_API_KEY",
		version:       defaultVersion,
		maxTokens:     llmstream.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string          { return "anthropic" }
func (p *Provider) Endpoint() string      { return p.endpoint }
func (p *Provider) CredentialEnv() string { return p.credentialEnv }

type apiRequest struct {
	Model       string       `json:"model"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	Stream      bool         `json:"stream"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *Provider) BuildHeaders(credential string) map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         credential,
		"anthropic-version": p.version,
	}
}

// BuildRequestBody moves system messages into the top-level system field.
func (p *Provider) BuildRequestBody(model string, messages []llmstream.Message, temperature float64) any {
	req := apiRequest{
		Model:       model,
		Messages:    make([]apiMessage, 0, len(messages)),
		Temperature: temperature,
		MaxTokens:   p.maxTokens,
		Stream:      true,
	}
	for _, m := range messages {
		if m.Role == llmstream.RoleSystem {
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content
			continue
		}
		req.Messages = append(req.Messages, apiMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

// DecodeChunk returns delta.text of content_block_delta events and "" for
// every other event type.
func (p *Provider) DecodeChunk(line string) string {
	data, ok := llmstream.EventData(line)
	if !ok || !gjson.Valid(data) {
		return ""
	}

	event := gjson.Parse(data)
	if event.Get("type").Str != eventContentDelta {
		return ""
	}

	text := event.Get("delta.text")
	if text.Type != gjson.String {
		return ""
	}
	return text.Str
}

// DecodeError reports "error" events such as overloaded_error.
func (p *Provider) DecodeError(line string) error {
	data, ok := llmstream.EventData(line)
	if !ok || !gjson.Valid(data) {
		return nil
	}

	event := gjson.Parse(data)
	if event.Get("type").Str != eventError {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", llmstream.ErrStreamFailed,
		event.Get("error.type").String(), event.Get("error.message").String())
}

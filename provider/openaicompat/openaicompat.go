package openaicompat

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/ineyio/llmstream"
)

// Provider is the OpenAI-compatible chat completions descriptor.
// Works with OpenAI, Mistral, and any backend speaking the same wire format.
type Provider struct {
	name          string
	endpoint      string
	credentialEnv string
	maxTokens     int
}

var (
	_ llmstream.Provider     = (*Provider)(nil)
	_ llmstream.ErrorDecoder = (*Provider)(nil)
)

// Option configures the provider.
type Option func(*Provider)

// WithEndpoint overrides the completion URL.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithCredentialEnv overrides the environment variable holding the API key.
func WithCredentialEnv(key string) Option {
	return func(p *Provider) { p.credentialEnv = key }
}

// WithMaxTokens sets max_tokens (default llmstream.DefaultMaxTokens).
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// New creates a new OpenAI-compatible provider.
func New(name, endpoint, credentialEnv string, opts ...Option) *Provider {
	p := &Provider{
		name:          name,
		endpoint:      endpoint,
		credentialEnv: credentialEnv,
		maxTokens:     llmstream.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewOpenAI creates a provider for OpenAI.
func NewOpenAI(opts ...Option) *Provider {
	return New("openai", "https://api.openai.com/v1/chat/completions", "OPENAI_API_KEY", opts...)
}

// NewMistral creates a provider for Mistral.
func NewMistral(opts ...Option) *Provider {
	return New("mistral", "https://api.mistral.ai/v1/chat/completions", "MISTRAL_API_KEY", opts...)
}

func (p *Provider) Name() string          { return p.name }
func (p *Provider) Endpoint() string      { return p.endpoint }
func (p *Provider) CredentialEnv() string { return p.credentialEnv }

// apiRequest is the OpenAI chat completion request format.
type apiRequest struct {
	Model       string       `json:"model"`
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
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + credential,
	}
}

func (p *Provider) BuildRequestBody(model string, messages []llmstream.Message, temperature float64) any {
	msgs := make([]apiMessage, len(messages))
	for i, m := range messages {
		msgs[i] = apiMessage{Role: m.Role, Content: m.Content}
	}
	return apiRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   p.maxTokens,
		Stream:      true,
	}
}

// DecodeChunk extracts choices[0].delta.content from a "data: " line.
// Empty choices, keep-alives and the [DONE] sentinel decode to "".
func (p *Provider) DecodeChunk(line string) string {
	data, ok := llmstream.EventData(line)
	if !ok || !gjson.Valid(data) {
		return ""
	}

	content := gjson.Get(data, "choices.0.delta.content")
	if content.Type != gjson.String {
		return ""
	}
	return content.Str
}

// DecodeError reports a mid-stream {"error": {...}} frame.
func (p *Provider) DecodeError(line string) error {
	data, ok := llmstream.EventData(line)
	if !ok || !gjson.Valid(data) {
		return nil
	}

	e := gjson.Get(data, "error")
	if !e.IsObject() {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", llmstream.ErrStreamFailed,
		e.Get("type").String(), e.Get("message").String())
}

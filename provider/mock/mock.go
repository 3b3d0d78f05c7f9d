// Package mock provides an in-memory provider descriptor and a scripted
// transport for tests.
package mock

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ineyio/llmstream"
)

// Provider is a mock descriptor. Every "data: " payload is a fragment.
type Provider struct {
	name          string
	credentialEnv string
	decode        func(string) string
	decodeErr     func(string) error
}

var (
	_ llmstream.Provider     = (*Provider)(nil)
	_ llmstream.ErrorDecoder = (*Provider)(nil)
)

// Option configures a mock Provider.
type Option func(*Provider)

// New creates a mock provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:          "mock",
		credentialEnv: "MOCK_API_KEY",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithCredentialEnv sets the credential variable.
func WithCredentialEnv(key string) Option {
	return func(p *Provider) { p.credentialEnv = key }
}

// WithDecoder replaces the chunk decoder.
func WithDecoder(fn func(string) string) Option {
	return func(p *Provider) { p.decode = fn }
}

// WithErrorDecoder sets how error events are recognized.
func WithErrorDecoder(fn func(string) error) Option {
	return func(p *Provider) { p.decodeErr = fn }
}

func (p *Provider) Name() string          { return p.name }
func (p *Provider) Endpoint() string      { return "http://" + p.name + ".invalid/v1/stream" }
func (p *Provider) CredentialEnv() string { return p.credentialEnv }

func (p *Provider) BuildHeaders(credential string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + credential}
}

func (p *Provider) BuildRequestBody(model string, messages []llmstream.Message, temperature float64) any {
	return map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
	}
}

func (p *Provider) DecodeChunk(line string) string {
	if p.decode != nil {
		return p.decode(line)
	}
	data, ok := llmstream.EventData(line)
	if !ok {
		return ""
	}
	return data
}

func (p *Provider) DecodeError(line string) error {
	if p.decodeErr != nil {
		return p.decodeErr(line)
	}
	return nil
}

// Transport replays scripted lines for every started request.
type Transport struct {
	lines    []string
	latency  time.Duration
	startErr error
	endErr   error
	hold     bool

	callCount  atomic.Int64
	closeCount atomic.Int64

	mu       sync.Mutex
	requests []llmstream.Request
}

var _ llmstream.Transport = (*Transport)(nil)

// TransportOption configures a mock Transport.
type TransportOption func(*Transport)

// NewTransport creates a transport replaying lines.
func NewTransport(lines []string, opts ...TransportOption) *Transport {
	t := &Transport{lines: lines}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithLatency delays every line.
func WithLatency(d time.Duration) TransportOption {
	return func(t *Transport) { t.latency = d }
}

// WithStartError makes Start fail.
func WithStartError(err error) TransportOption {
	return func(t *Transport) { t.startErr = err }
}

// WithEndError ends the stream with err instead of io.EOF.
func WithEndError(err error) TransportOption {
	return func(t *Transport) { t.endErr = err }
}

// WithHold keeps the stream open after the scripted lines until the
// context is cancelled.
func WithHold() TransportOption {
	return func(t *Transport) { t.hold = true }
}

func (t *Transport) Start(ctx context.Context, req llmstream.Request) (llmstream.LineStream, error) {
	t.callCount.Add(1)
	if t.startErr != nil {
		return nil, t.startErr
	}

	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()

	return &stream{ctx: ctx, t: t}, nil
}

// CallCount returns the number of Start calls.
func (t *Transport) CallCount() int64 { return t.callCount.Load() }

// CloseCount returns the number of closed streams.
func (t *Transport) CloseCount() int64 { return t.closeCount.Load() }

// Requests returns the requests received by successful Start calls.
func (t *Transport) Requests() []llmstream.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]llmstream.Request(nil), t.requests...)
}

type stream struct {
	ctx    context.Context
	t      *Transport
	index  int
	closed atomic.Bool
}

func (s *stream) Next() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}

	if s.index >= len(s.t.lines) {
		if s.t.hold {
			<-s.ctx.Done()
			return "", s.ctx.Err()
		}
		if s.t.endErr != nil {
			return "", s.t.endErr
		}
		return "", io.EOF
	}

	if s.t.latency > 0 {
		select {
		case <-time.After(s.t.latency):
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}

	line := s.t.lines[s.index]
	s.index++
	return line, nil
}

func (s *stream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.t.closeCount.Add(1)
	}
	return nil
}

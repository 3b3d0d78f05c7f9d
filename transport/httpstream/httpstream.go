// Package httpstream streams completions in-process over net/http.
package httpstream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ineyio/llmstream"
)

// Transport performs the streaming POST with an *http.Client.
type Transport struct {
	httpClient *http.Client
}

var _ llmstream.Transport = (*Transport)(nil)

// Option configures the transport.
type Option func(*Transport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// New creates a Transport using http.DefaultClient.
func New(opts ...Option) *Transport {
	t := &Transport{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Start(ctx context.Context, req llmstream.Request) (llmstream.LineStream, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", llmstream.ErrInvalidRequest, err)
	}

	for name, value := range req.Headers {
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("%w: value of %s contains a line break", llmstream.ErrInvalidHeader, name)
		}
		httpReq.Header.Set(name, value)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llmstream.ErrSpawn, err)
	}

	if err := mapHTTPError(resp); err != nil {
		return nil, err
	}

	return &stream{
		reader: bufio.NewReader(resp.Body),
		body:   resp.Body,
	}, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()

	return llmstream.StatusError(resp.StatusCode, string(body))
}

// stream yields raw response lines. A body that breaks off after output
// has begun ends the stream like a normal EOF.
type stream struct {
	reader *bufio.Reader
	body   io.ReadCloser
	output bool
	done   bool
}

func (s *stream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	line, err := s.reader.ReadString('\n')
	if line != "" && (err == nil || errors.Is(err, io.EOF)) {
		s.output = true
		return strings.TrimRight(line, "\r\n"), nil
	}

	s.done = true
	if err == nil || errors.Is(err, io.EOF) || s.output {
		return "", io.EOF
	}
	return "", fmt.Errorf("llmstream: read stream: %w", err)
}

func (s *stream) Close() error {
	return s.body.Close()
}

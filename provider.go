package llmstream

import "context"

// Provider describes one backend family: where to send requests, which
// credential to use, and how to encode requests and decode stream lines.
// Implementations must be immutable and safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Endpoint returns the streaming completion URL.
	Endpoint() string

	// CredentialEnv returns the environment variable holding the API key.
	CredentialEnv() string

	// BuildHeaders returns the HTTP headers for a request authenticated with credential.
	BuildHeaders(credential string) map[string]string

	// BuildRequestBody returns a JSON-serializable request body.
	BuildRequestBody(model string, messages []Message, temperature float64) any

	// DecodeChunk extracts the text fragment carried by one raw stream line.
	// Control frames and malformed lines yield "". It must never panic.
	DecodeChunk(line string) string
}

// ErrorDecoder is implemented by providers whose streams can report a
// failure after text has started to flow.
type ErrorDecoder interface {
	// DecodeError returns a non-nil error if line is an error event.
	DecodeError(line string) error
}

// Transport starts the network exchange for a built request.
type Transport interface {
	// Start begins streaming. Errors returned here are reported before any
	// fragment is produced.
	Start(ctx context.Context, req Request) (LineStream, error)
}

// LineStream is the ordered sequence of raw response lines.
type LineStream interface {
	// Next returns the next raw line. Returns io.EOF when done.
	Next() (string, error)

	// Close terminates the exchange if still running and releases resources.
	Close() error
}

package llmstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors.
var (
	ErrCredentialMissing   = errors.New("llmstream: credential missing")
	ErrModelNotFound       = errors.New("llmstream: model not found")
	ErrSpawn               = errors.New("llmstream: transport could not be started")
	ErrTransportExit       = errors.New("llmstream: transport exited before producing output")
	ErrInvalidHeader       = errors.New("llmstream: invalid header")
	ErrAuthFailed          = errors.New("llmstream: authentication failed")
	ErrRateLimited         = errors.New("llmstream: rate limited by provider")
	ErrInvalidRequest      = errors.New("llmstream: invalid request")
	ErrProviderUnavailable = errors.New("llmstream: provider unavailable")
	ErrEmptyPrompt         = errors.New("llmstream: empty prompt")
	ErrStreamFailed        = errors.New("llmstream: provider reported an error mid-stream")
)

// StatusError maps a non-2xx HTTP status to a sentinel and keeps the
// response body for context. It returns nil for 2xx.
func StatusError(status int, body string) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var sentinel error
	switch status {
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrAuthFailed
	case http.StatusBadRequest:
		sentinel = ErrInvalidRequest
	default:
		sentinel = ErrProviderUnavailable
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("%w: status %d", sentinel, status)
	}
	return fmt.Errorf("%w: status %d: %s", sentinel, status, body)
}

// GatewayError wraps an error with request context.
type GatewayError struct {
	Err       error
	Provider  string
	Model     string
	SessionID string
}

func (e *GatewayError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("llmstream: provider=%s model=%s: %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("llmstream: provider=%s model=%s session=%s: %v",
		e.Provider, e.Model, e.SessionID, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsCredentialMissing reports whether err was caused by an unset API key.
func IsCredentialMissing(err error) bool {
	return errors.Is(err, ErrCredentialMissing)
}

// IsStartFailure reports whether err prevented a session from starting.
func IsStartFailure(err error) bool {
	return errors.Is(err, ErrCredentialMissing) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrSpawn) ||
		errors.Is(err, ErrInvalidHeader) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptyPrompt)
}

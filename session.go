package llmstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Session is one prompt-to-response streaming exchange.
// Fragments are decoded and relayed by a single goroutine in transport order.
type Session struct {
	ID    string
	Model ModelEntry

	ctx    context.Context
	cancel context.CancelFunc
	stream LineStream
	relay  *Relay
	meter  Meter
	logger *slog.Logger

	startTime time.Time
	done      chan struct{}
	err       error // final error, set before done is closed
	lines     int
	skipped   int
}

// Done is closed once the transport is released and all lines are relayed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends and returns its error.
// A transport that exits after streaming output is not an error.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Err returns the session error, or nil while the session is running.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Cancel terminates the transport. Already written text stays in the sink.
func (s *Session) Cancel() { s.cancel() }

// Fragments returns the number of fragments delivered so far.
func (s *Session) Fragments() int { return s.relay.Delivered() }

func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()

	err := s.pump()
	if closeErr := s.stream.Close(); closeErr != nil {
		s.logger.Debug("transport close", "session", s.ID, "error", closeErr)
	}
	if err != nil {
		err = &GatewayError{
			Err:       err,
			Provider:  s.Model.Provider.Name(),
			Model:     s.Model.ID,
			SessionID: s.ID,
		}
	}
	s.err = err

	s.meter.OnResult(ResultEvent{
		SessionID: s.ID,
		Provider:  s.Model.Provider.Name(),
		Model:     s.Model.ID,
		Success:   err == nil,
		Duration:  time.Since(s.startTime),
		Fragments: s.relay.Delivered(),
		Lines:     s.lines,
		Skipped:   s.skipped,
		Error:     err,
	})
}

func (s *Session) pump() error {
	for {
		line, err := s.stream.Next()
		if err != nil {
			// Cancellation wins over whatever the transport reported.
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return s.relay.OnError(ctxErr)
			}
			if errors.Is(err, io.EOF) {
				if err := s.relay.OnComplete(); err != nil {
					return fmt.Errorf("llmstream: sink: %w", err)
				}
				return nil
			}
			return s.relay.OnError(err)
		}
		s.lines++

		fragment := Decode(s.Model.Provider, line)
		if fragment == "" && strings.TrimSpace(line) != "" {
			if err := DecodeError(s.Model.Provider, line); err != nil {
				s.logger.Warn("provider error event", "session", s.ID, "error", err)
				return s.relay.OnError(err)
			}
			s.skipped++
			s.logger.Debug("skip frame", "session", s.ID, "line", truncate(line, 120))
		}

		if err := s.relay.OnFragment(fragment); err != nil {
			return fmt.Errorf("llmstream: sink: %w", err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

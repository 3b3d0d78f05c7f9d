// Package sink provides llmstream.Sink implementations.
package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ineyio/llmstream"
)

// Kind tells whether a call opened an insertion or extended it.
type Kind int

const (
	Begin Kind = iota
	Continue
)

func (k Kind) String() string {
	switch k {
	case Begin:
		return "begin"
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// Call is one recorded sink invocation.
type Call struct {
	Kind Kind
	Text string
}

// Buffer records every call. Safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	calls []Call
	text  strings.Builder
}

var _ llmstream.Sink = (*Buffer)(nil)

func (b *Buffer) BeginInsertion(text string) error {
	b.record(Begin, text)
	return nil
}

func (b *Buffer) ContinueInsertion(text string) error {
	b.record(Continue, text)
	return nil
}

func (b *Buffer) record(k Kind, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Kind: k, Text: text})
	b.text.WriteString(text)
}

// Calls returns the recorded calls in order.
func (b *Buffer) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// String returns the concatenated text.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

// Writer appends all text to an io.Writer, e.g. a terminal.
type Writer struct {
	W io.Writer
}

var _ llmstream.Sink = (*Writer)(nil)

// NewWriter creates a Writer sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{W: w}
}

func (w *Writer) BeginInsertion(text string) error {
	return w.write(text)
}

func (w *Writer) ContinueInsertion(text string) error {
	return w.write(text)
}

func (w *Writer) write(text string) error {
	if _, err := io.WriteString(w.W, text); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	if f, ok := w.W.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Serialized guards a Sink shared by concurrent sessions so that each call
// is applied atomically.
type Serialized struct {
	mu    sync.Mutex
	inner llmstream.Sink
}

var _ llmstream.Sink = (*Serialized)(nil)

// NewSerialized wraps inner.
func NewSerialized(inner llmstream.Sink) *Serialized {
	return &Serialized{inner: inner}
}

func (s *Serialized) BeginInsertion(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.BeginInsertion(text)
}

func (s *Serialized) ContinueInsertion(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ContinueInsertion(text)
}

package llmstream

import "sync/atomic"

// DefaultSeparator frames a streamed answer inside the sink.
const DefaultSeparator = "\n"

// Sink receives streamed text. ContinueInsertion belongs to the same undo
// unit as the preceding BeginInsertion.
type Sink interface {
	BeginInsertion(text string) error
	ContinueInsertion(text string) error
}

// Relay forwards one session's fragments to a Sink.
// It is not safe for concurrent use; a session drives it from one goroutine.
// Delivered may be read from any goroutine.
type Relay struct {
	sink      Sink
	separator string
	started   bool
	delivered atomic.Int64
}

// NewRelay creates a Relay writing to sink, framing output with separator.
func NewRelay(sink Sink, separator string) *Relay {
	return &Relay{sink: sink, separator: separator}
}

// OnFragment forwards a decoded fragment. Empty fragments are dropped.
func (r *Relay) OnFragment(fragment string) error {
	if fragment == "" {
		return nil
	}

	var err error
	if !r.started {
		err = r.sink.BeginInsertion(r.separator + fragment)
	} else {
		err = r.sink.ContinueInsertion(fragment)
	}
	if err != nil {
		return err
	}

	r.started = true
	r.delivered.Add(1)
	return nil
}

// OnComplete closes the insertion if anything was written.
func (r *Relay) OnComplete() error {
	if !r.started {
		return nil
	}
	return r.sink.ContinueInsertion(r.separator)
}

// OnError passes cause through. Text already written stays in the sink.
func (r *Relay) OnError(cause error) error {
	return cause
}

// Delivered returns the number of non-empty fragments written.
func (r *Relay) Delivered() int { return int(r.delivered.Load()) }

package llmstream

import "time"

// Meter observes session lifecycle events for monitoring/logging.
type Meter interface {
	// OnStart is called once the transport for a session is running.
	OnStart(event StartEvent)

	// OnResult is called when a session ends, successfully or not.
	OnResult(event ResultEvent)
}

// StartEvent describes a started session.
type StartEvent struct {
	SessionID   string
	Provider    string
	Model       string
	EstimatedIn int64
}

// ResultEvent describes the outcome of a session.
type ResultEvent struct {
	SessionID string
	Provider  string
	Model     string
	Success   bool
	Duration  time.Duration
	Fragments int
	Lines     int
	Skipped   int
	Error     error
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (m *noopMeter) OnStart(StartEvent)   {}
func (m *noopMeter) OnResult(ResultEvent) {}

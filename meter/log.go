package meter

import (
	"log/slog"

	"github.com/ineyio/llmstream"
)

// LogMeter logs session events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ llmstream.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnStart(e llmstream.StartEvent) {
	m.Logger.Info("session_start",
		"session", e.SessionID,
		"provider", e.Provider,
		"model", e.Model,
		"estimated_tokens", e.EstimatedIn,
	)
}

func (m *LogMeter) OnResult(e llmstream.ResultEvent) {
	if e.Success {
		m.Logger.Info("session_end",
			"session", e.SessionID,
			"provider", e.Provider,
			"model", e.Model,
			"duration_ms", e.Duration.Milliseconds(),
			"fragments", e.Fragments,
			"lines", e.Lines,
			"skipped", e.Skipped,
		)
	} else {
		m.Logger.Warn("session_error",
			"session", e.SessionID,
			"provider", e.Provider,
			"model", e.Model,
			"duration_ms", e.Duration.Milliseconds(),
			"fragments", e.Fragments,
			"error", e.Error,
		)
	}
}

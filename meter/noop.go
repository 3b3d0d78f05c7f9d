package meter

import "github.com/ineyio/llmstream"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ llmstream.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnStart(llmstream.StartEvent)   {}
func (m *NoopMeter) OnResult(llmstream.ResultEvent) {}

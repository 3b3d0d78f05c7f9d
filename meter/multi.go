package meter

import "github.com/ineyio/llmstream"

// Multi fans events out to several meters in order.
type Multi []llmstream.Meter

var _ llmstream.Meter = (Multi)(nil)

func (m Multi) OnStart(e llmstream.StartEvent) {
	for _, mm := range m {
		mm.OnStart(e)
	}
}

func (m Multi) OnResult(e llmstream.ResultEvent) {
	for _, mm := range m {
		mm.OnResult(e)
	}
}

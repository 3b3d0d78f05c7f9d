package meter

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ineyio/llmstream"
)

type countingMeter struct {
	starts, results int
}

func (c *countingMeter) OnStart(llmstream.StartEvent)   { c.starts++ }
func (c *countingMeter) OnResult(llmstream.ResultEvent) { c.results++ }

func TestMulti(t *testing.T) {
	a, b := &countingMeter{}, &countingMeter{}
	m := Multi{a, &NoopMeter{}, b}

	m.OnStart(llmstream.StartEvent{})
	m.OnResult(llmstream.ResultEvent{})
	m.OnResult(llmstream.ResultEvent{})

	assert.Equal(t, 1, a.starts)
	assert.Equal(t, 2, b.results)
}

func TestLogMeter(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMeter(slog.New(slog.NewTextHandler(&buf, nil)))

	m.OnStart(llmstream.StartEvent{SessionID: "s1", Provider: "openai", Model: "gpt-4o", EstimatedIn: 12})
	m.OnResult(llmstream.ResultEvent{SessionID: "s1", Provider: "openai", Model: "gpt-4o", Success: true, Fragments: 3})
	m.OnResult(llmstream.ResultEvent{SessionID: "s2", Provider: "openai", Model: "gpt-4o", Error: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "msg=session_start")
	assert.Contains(t, out, "estimated_tokens=12")
	assert.Contains(t, out, "msg=session_end")
	assert.Contains(t, out, "fragments=3")
	assert.Contains(t, out, "level=WARN msg=session_error")
	assert.Contains(t, out, "error=boom")
}

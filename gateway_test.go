package llmstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	ls "github.com/ineyio/llmstream"
	"github.com/ineyio/llmstream/meter"
	"github.com/ineyio/llmstream/provider/mock"
	"github.com/ineyio/llmstream/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func credentials(vals map[string]string) ls.CredentialSource {
	return func(key string) (string, bool) {
		v, ok := vals[key]
		return v, ok
	}
}

func newTestRegistry(t *testing.T, provs ...ls.Provider) *ls.Registry {
	t.Helper()
	if len(provs) == 0 {
		provs = []ls.Provider{mock.New()}
	}
	var entries []ls.ModelEntry
	for i, p := range provs {
		entries = append(entries, ls.ModelEntry{
			ID:          p.Name() + "-model",
			DisplayName: "Model " + string(rune('A'+i)),
			Provider:    p,
		})
	}
	r, err := ls.NewRegistry(entries)
	require.NoError(t, err)
	return r
}

func newTestGateway(t *testing.T, reg *ls.Registry, tr ls.Transport, opts ...ls.Option) *ls.Gateway {
	t.Helper()
	opts = append([]ls.Option{
		ls.WithCredentialSource(credentials(map[string]string{"MOCK_API_KEY": "secret"})),
		ls.WithMeter(&meter.NoopMeter{}),
	}, opts...)
	g, err := ls.New(reg, tr, opts...)
	require.NoError(t, err)
	return g
}

func TestAsk_StreamsFragmentsInOrder(t *testing.T) {
	tr := mock.NewTransport([]string{"data: He", ": keep-alive", "", "data: llo", "data: [DONE]"})
	g := newTestGateway(t, newTestRegistry(t), tr)

	buf := &sink.Buffer{}
	s, err := g.Ask(context.Background(), "  greet me  ", buf)
	require.NoError(t, err)
	require.NoError(t, s.Wait())

	assert.Equal(t, []sink.Call{
		{Kind: sink.Begin, Text: "\nHe"},
		{Kind: sink.Continue, Text: "llo"},
		{Kind: sink.Continue, Text: "\n"},
	}, buf.Calls())
	assert.Equal(t, 2, s.Fragments())
	assert.Equal(t, int64(1), tr.CloseCount())
}

func TestAsk_BuildsTrimmedOneShotRequest(t *testing.T) {
	tr := mock.NewTransport(nil)
	g := newTestGateway(t, newTestRegistry(t), tr, ls.WithSystemInstruction("  Be brief.  "))

	s, err := g.Ask(context.Background(), "\n question \t", &sink.Buffer{})
	require.NoError(t, err)
	require.NoError(t, s.Wait())

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "mock-model", reqs[0].Model)
	assert.Equal(t, "Bearer secret", reqs[0].Headers["Authorization"])

	var body struct {
		Messages    []ls.Message `json:"messages"`
		Temperature float64      `json:"temperature"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, []ls.Message{
		{Role: ls.RoleSystem, Content: "Be brief."},
		{Role: ls.RoleUser, Content: "question"},
	}, body.Messages)
	assert.InDelta(t, 0.7, body.Temperature, 1e-9)
}

func TestAsk_NoFragmentsWritesNothing(t *testing.T) {
	tr := mock.NewTransport([]string{"event: ping", "data: [DONE]"})
	g := newTestGateway(t, newTestRegistry(t), tr)

	buf := &sink.Buffer{}
	s, err := g.Ask(context.Background(), "hello", buf)
	require.NoError(t, err)
	require.NoError(t, s.Wait())
	assert.Empty(t, buf.Calls())
}

func TestAsk_CredentialMissingBeforeSpawn(t *testing.T) {
	tr := mock.NewTransport([]string{"data: x"})
	g := newTestGateway(t, newTestRegistry(t), tr,
		ls.WithCredentialSource(credentials(map[string]string{"MOCK_API_KEY": "  "})))

	_, err := g.Ask(context.Background(), "hello", &sink.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ls.ErrCredentialMissing)
	assert.Contains(t, err.Error(), "MOCK_API_KEY")
	assert.Equal(t, int64(0), tr.CallCount(), "transport must not be started")

	var gwErr *ls.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "mock", gwErr.Provider)
}

func TestAsk_SpawnErrorIsSynchronous(t *testing.T) {
	spawnErr := errors.Join(ls.ErrSpawn, errors.New("exec: no such file"))
	tr := mock.NewTransport(nil, mock.WithStartError(spawnErr))
	g := newTestGateway(t, newTestRegistry(t), tr)

	buf := &sink.Buffer{}
	s, err := g.Ask(context.Background(), "hello", buf)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ls.ErrSpawn)
	assert.True(t, ls.IsStartFailure(err))
	assert.Empty(t, buf.Calls())
}

func TestAsk_EmptyPrompt(t *testing.T) {
	tr := mock.NewTransport(nil)
	g := newTestGateway(t, newTestRegistry(t), tr)

	_, err := g.Ask(context.Background(), " \n\t", &sink.Buffer{})
	assert.ErrorIs(t, err, ls.ErrEmptyPrompt)
	assert.Equal(t, int64(0), tr.CallCount())
}

func TestAsk_TransportFailureKeepsPartialOutput(t *testing.T) {
	cause := errors.New("connection reset")
	tr := mock.NewTransport([]string{"data: partial"}, mock.WithEndError(cause))
	g := newTestGateway(t, newTestRegistry(t), tr)

	buf := &sink.Buffer{}
	s, err := g.Ask(context.Background(), "hello", buf)
	require.NoError(t, err)

	err = s.Wait()
	assert.ErrorIs(t, err, cause)
	// No trailing separator and no rollback on failure.
	assert.Equal(t, []sink.Call{{Kind: sink.Begin, Text: "\npartial"}}, buf.Calls())
	assert.Equal(t, int64(1), tr.CloseCount())
}

func TestAsk_ErrorEventEndsSession(t *testing.T) {
	overloaded := errors.New("overloaded_error: Overloaded")
	prov := mock.New(mock.WithErrorDecoder(func(line string) error {
		if line == "event: error" {
			return overloaded
		}
		return nil
	}))
	tr := mock.NewTransport([]string{"data: partial", ": ping", "event: error", "data: never"})
	g := newTestGateway(t, newTestRegistry(t, prov), tr)

	buf := &sink.Buffer{}
	s, err := g.Ask(context.Background(), "hello", buf)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Wait(), overloaded)
	assert.Equal(t, []sink.Call{{Kind: sink.Begin, Text: "\npartial"}}, buf.Calls())
	assert.Equal(t, int64(1), tr.CloseCount())
}

func TestSession_FragmentsCanBePolled(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "data: x"
	}
	tr := mock.NewTransport(lines, mock.WithLatency(time.Millisecond))
	g := newTestGateway(t, newTestRegistry(t), tr)

	s, err := g.Ask(context.Background(), "hello", &sink.Buffer{})
	require.NoError(t, err)

	last := 0
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
poll:
	for {
		select {
		case <-s.Done():
			break poll
		case <-ticker.C:
			n := s.Fragments()
			assert.GreaterOrEqual(t, n, last)
			last = n
		}
	}
	require.NoError(t, s.Wait())
	assert.Equal(t, 50, s.Fragments())
}

func TestAsk_CancelTerminatesSession(t *testing.T) {
	tr := mock.NewTransport([]string{"data: first"}, mock.WithHold())
	g := newTestGateway(t, newTestRegistry(t), tr)

	buf := &sink.Buffer{}
	s, err := g.Ask(context.Background(), "hello", buf)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return buf.String() != "" }, time.Second, 5*time.Millisecond)
	assert.Nil(t, s.Err(), "session still running")

	s.Cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after Cancel")
	}

	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.Equal(t, "\nfirst", buf.String())
	assert.Equal(t, int64(1), tr.CloseCount())
}

type failingSink struct{ calls int }

func (f *failingSink) BeginInsertion(string) error {
	f.calls++
	return io.ErrClosedPipe
}

func (f *failingSink) ContinueInsertion(string) error {
	f.calls++
	return io.ErrClosedPipe
}

func TestAsk_SinkErrorEndsSession(t *testing.T) {
	tr := mock.NewTransport([]string{"data: a", "data: b"}, mock.WithHold())
	g := newTestGateway(t, newTestRegistry(t), tr)

	fs := &failingSink{}
	s, err := g.Ask(context.Background(), "hello", fs)
	require.NoError(t, err)

	err = s.Wait()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, 1, fs.calls)
	assert.Equal(t, int64(1), tr.CloseCount())
}

func TestAsk_ModelResolvedAtStart(t *testing.T) {
	alpha := mock.New(mock.WithName("alpha"), mock.WithCredentialEnv("ALPHA_KEY"))
	beta := mock.New(mock.WithName("beta"), mock.WithCredentialEnv("BETA_KEY"))
	reg := newTestRegistry(t, alpha, beta)

	tr := mock.NewTransport([]string{"data: one", "data: two"}, mock.WithLatency(20*time.Millisecond))
	g := newTestGateway(t, reg, tr, ls.WithCredentialSource(credentials(map[string]string{
		"ALPHA_KEY": "a", "BETA_KEY": "b",
	})))

	s, err := g.Ask(context.Background(), "hello", &sink.Buffer{})
	require.NoError(t, err)

	msg, ok := g.SetModel(context.Background(), "beta-model")
	require.True(t, ok, msg)

	require.NoError(t, s.Wait())
	assert.Equal(t, "alpha-model", s.Model.ID)
	assert.Equal(t, "beta-model", reg.Active().ID)
}

func TestAsk_ConcurrentSessionsAreIndependent(t *testing.T) {
	tr := mock.NewTransport([]string{"data: x", "data: y", "data: z"}, mock.WithLatency(time.Millisecond))
	g := newTestGateway(t, newTestRegistry(t), tr)

	const n = 8
	bufs := make([]*sink.Buffer, n)
	var wg sync.WaitGroup
	for i := range n {
		bufs[i] = &sink.Buffer{}
		wg.Add(1)
		go func(b *sink.Buffer) {
			defer wg.Done()
			s, err := g.Ask(context.Background(), "hello", b)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, s.Wait())
		}(bufs[i])
	}
	wg.Wait()

	for _, b := range bufs {
		assert.Equal(t, "\nxyz\n", b.String())
	}
	assert.Equal(t, int64(n), tr.CloseCount())
}

func TestModify_ComposesInstructionAndSelection(t *testing.T) {
	tr := mock.NewTransport([]string{"data: fixed"})
	g := newTestGateway(t, newTestRegistry(t), tr, ls.WithModifyInstruction("Rewrite."))

	buf := &sink.Buffer{}
	s, err := g.Modify(context.Background(), "teh text", "fix typos", buf)
	require.NoError(t, err)
	require.NoError(t, s.Wait())

	var body struct {
		Messages []ls.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(tr.Requests()[0].Body, &body))
	assert.Equal(t, "Rewrite.", body.Messages[0].Content)
	assert.Equal(t, "fix typos\n\nteh text", body.Messages[1].Content)
	assert.Equal(t, "\nfixed\n", buf.String())

	_, err = g.Modify(context.Background(), "text", "  ", buf)
	assert.ErrorIs(t, err, ls.ErrEmptyPrompt)
}

func TestListModels_MarksActive(t *testing.T) {
	reg := newTestRegistry(t, mock.New(mock.WithName("alpha")), mock.New(mock.WithName("beta")))
	g := newTestGateway(t, reg, mock.NewTransport(nil))

	out := g.ListModels()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* alpha-model"))
	assert.True(t, strings.HasPrefix(lines[1], "  beta-model"))
	assert.Contains(t, lines[1], "Model B (beta)")
}

func TestSetModel_UnknownLeavesSelection(t *testing.T) {
	reg := newTestRegistry(t, mock.New(mock.WithName("alpha")), mock.New(mock.WithName("beta")))
	g := newTestGateway(t, reg, mock.NewTransport(nil))

	msg, ok := g.SetModel(context.Background(), "nope")
	assert.False(t, ok)
	assert.Contains(t, msg, `"nope"`)
	assert.Contains(t, msg, "alpha-model, beta-model")
	assert.Equal(t, "alpha-model", reg.Active().ID)

	msg, ok = g.SetModel(context.Background(), " beta-model ")
	assert.True(t, ok)
	assert.Equal(t, "Model set to Model B (beta-model)", msg)
}

type memoryStore struct {
	mu      sync.Mutex
	id      string
	saves   int
	loadErr error
}

func (m *memoryStore) LoadActive(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, m.loadErr
}

func (m *memoryStore) SaveActive(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	m.saves++
	return nil
}

func TestSelectionStore_PersistAndRestore(t *testing.T) {
	store := &memoryStore{}
	reg := newTestRegistry(t, mock.New(mock.WithName("alpha")), mock.New(mock.WithName("beta")))
	g := newTestGateway(t, reg, mock.NewTransport(nil), ls.WithSelectionStore(store))

	_, ok := g.SetModel(context.Background(), "beta-model")
	require.True(t, ok)
	_, ok = g.SetModel(context.Background(), "missing")
	require.False(t, ok)
	assert.Equal(t, "beta-model", store.id)
	assert.Equal(t, 1, store.saves)

	reg2 := newTestRegistry(t, mock.New(mock.WithName("alpha")), mock.New(mock.WithName("beta")))
	g2 := newTestGateway(t, reg2, mock.NewTransport(nil), ls.WithSelectionStore(store))
	require.NoError(t, g2.Restore(context.Background()))
	assert.Equal(t, "beta-model", reg2.Active().ID)
}

func TestSelectionStore_StaleAndFailingRestore(t *testing.T) {
	reg := newTestRegistry(t, mock.New(mock.WithName("alpha")))

	g := newTestGateway(t, reg, mock.NewTransport(nil), ls.WithSelectionStore(&memoryStore{id: "retired-model"}))
	require.NoError(t, g.Restore(context.Background()))
	assert.Equal(t, "alpha-model", reg.Active().ID)

	boom := errors.New("store down")
	g = newTestGateway(t, reg, mock.NewTransport(nil), ls.WithSelectionStore(&memoryStore{loadErr: boom}))
	assert.ErrorIs(t, g.Restore(context.Background()), boom)
}

type recordingMeter struct {
	mu      sync.Mutex
	starts  []ls.StartEvent
	results []ls.ResultEvent
}

func (m *recordingMeter) OnStart(e ls.StartEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, e)
}

func (m *recordingMeter) OnResult(e ls.ResultEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, e)
}

func TestMeter_ReceivesLifecycle(t *testing.T) {
	rm := &recordingMeter{}
	tr := mock.NewTransport([]string{"data: a", "event: ping", "data: b", "data: [DONE]"})
	g := newTestGateway(t, newTestRegistry(t), tr, ls.WithMeter(rm))

	s, err := g.Ask(context.Background(), "hello", &sink.Buffer{})
	require.NoError(t, err)
	require.NoError(t, s.Wait())

	rm.mu.Lock()
	defer rm.mu.Unlock()
	require.Len(t, rm.starts, 1)
	require.Len(t, rm.results, 1)
	assert.Equal(t, s.ID, rm.starts[0].SessionID)
	assert.Positive(t, rm.starts[0].EstimatedIn)

	res := rm.results[0]
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Fragments)
	assert.Equal(t, 4, res.Lines)
	assert.Equal(t, 2, res.Skipped)
	assert.NoError(t, res.Error)
}

func TestNew_RequiresRegistryAndTransport(t *testing.T) {
	_, err := ls.New(nil, mock.NewTransport(nil))
	assert.Error(t, err)

	_, err = ls.New(newTestRegistry(t), nil)
	assert.Error(t, err)
}

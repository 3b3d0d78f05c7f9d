package llmstream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default instructions sent as the system message.
const (
	DefaultSystemInstruction = "You are a helpful assistant working inside a text editor. " +
		"Answer the user's request directly and concisely."
	DefaultModifyInstruction = "You rewrite text. Apply the user's instruction to the provided text " +
		"and reply with the rewritten text only, without commentary."
)

// Gateway dispatches prompts to the active model and streams the answer into a Sink.
type Gateway struct {
	registry  *Registry
	transport Transport
	builder   *RequestBuilder

	credentials       CredentialSource
	store             SelectionStore
	meter             Meter
	logger            *slog.Logger
	systemInstruction string
	modifyInstruction string
	temperature       float64
	separator         string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(g *Gateway) { g.meter = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithCredentialSource sets where API keys are read from (default: environment).
func WithCredentialSource(src CredentialSource) Option {
	return func(g *Gateway) { g.credentials = src }
}

// WithSelectionStore persists model switches.
func WithSelectionStore(s SelectionStore) Option {
	return func(g *Gateway) { g.store = s }
}

// WithSystemInstruction sets the system message used by Ask.
func WithSystemInstruction(s string) Option {
	return func(g *Gateway) { g.systemInstruction = s }
}

// WithModifyInstruction sets the system message used by Modify.
func WithModifyInstruction(s string) Option {
	return func(g *Gateway) { g.modifyInstruction = s }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Gateway) { g.temperature = t }
}

// WithSeparator sets the text framing each streamed answer.
func WithSeparator(sep string) Option {
	return func(g *Gateway) { g.separator = sep }
}

// New creates a Gateway over registry, starting exchanges with transport.
func New(registry *Registry, transport Transport, opts ...Option) (*Gateway, error) {
	if registry == nil {
		return nil, fmt.Errorf("llmstream: registry is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("llmstream: transport is required")
	}

	g := &Gateway{
		registry:          registry,
		transport:         transport,
		systemInstruction: DefaultSystemInstruction,
		modifyInstruction: DefaultModifyInstruction,
		temperature:       DefaultTemperature,
		separator:         DefaultSeparator,
	}

	for _, opt := range opts {
		opt(g)
	}

	// Apply defaults after options.
	if g.meter == nil {
		g.meter = &noopMeter{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.builder = NewRequestBuilder(registry, g.credentials)

	return g, nil
}

// Registry returns the model registry.
func (g *Gateway) Registry() *Registry { return g.registry }

// Ask streams the answer to prompt into sink. It returns once the transport
// is running; fragments are delivered asynchronously. ctx bounds the whole session.
func (g *Gateway) Ask(ctx context.Context, prompt string, sink Sink) (*Session, error) {
	return g.start(ctx, g.systemInstruction, prompt, sink)
}

// Modify streams a rewrite of selected according to instruction into sink.
func (g *Gateway) Modify(ctx context.Context, selected, instruction string, sink Sink) (*Session, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, ErrEmptyPrompt
	}
	prompt := strings.TrimSpace(instruction) + "\n\n" + selected
	return g.start(ctx, g.modifyInstruction, prompt, sink)
}

func (g *Gateway) start(ctx context.Context, instruction, prompt string, sink Sink) (*Session, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if sink == nil {
		return nil, fmt.Errorf("llmstream: sink is required")
	}

	// Resolved once: a later model switch does not affect this session.
	entry := g.registry.Active()

	req, err := g.builder.BuildFor(entry, instruction, prompt, g.temperature)
	if err != nil {
		return nil, &GatewayError{Err: err, Provider: entry.Provider.Name(), Model: entry.ID}
	}

	id := uuid.New().String()
	sctx, cancel := context.WithCancel(ctx)

	stream, err := g.transport.Start(sctx, req)
	if err != nil {
		cancel()
		return nil, &GatewayError{Err: err, Provider: req.Provider, Model: req.Model, SessionID: id}
	}

	s := &Session{
		ID:        id,
		Model:     entry,
		ctx:       sctx,
		cancel:    cancel,
		stream:    stream,
		relay:     NewRelay(sink, g.separator),
		meter:     g.meter,
		logger:    g.logger,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}

	g.meter.OnStart(StartEvent{
		SessionID: id,
		Provider:  req.Provider,
		Model:     req.Model,
		EstimatedIn: EstimateTokens([]Message{
			{Role: RoleSystem, Content: instruction},
			{Role: RoleUser, Content: prompt},
		}),
	})

	go s.run()
	return s, nil
}

// ListModels renders the catalog, marking the active model.
func (g *Gateway) ListModels() string {
	active := g.registry.Active().ID
	entries := g.registry.List()

	width := 0
	for _, e := range entries {
		width = max(width, len(e.ID))
	}

	var b strings.Builder
	for _, e := range entries {
		marker := " "
		if e.ID == active {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %-*s  %s (%s)\n", marker, width, e.ID, e.DisplayName, e.Provider.Name())
	}
	return b.String()
}

// SetModel switches the active model and returns a message for the user.
func (g *Gateway) SetModel(ctx context.Context, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if !g.registry.SetActive(id) {
		return fmt.Sprintf("Unknown model %q. Available: %s", id, strings.Join(g.modelIDs(), ", ")), false
	}

	if g.store != nil {
		if err := g.store.SaveActive(ctx, id); err != nil {
			g.logger.Warn("persist model selection", "model", id, "error", err)
		}
	}

	entry := g.registry.Active()
	return fmt.Sprintf("Model set to %s (%s)", entry.DisplayName, entry.ID), true
}

// Restore loads a persisted selection. Stale ids are ignored.
func (g *Gateway) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}

	id, err := g.store.LoadActive(ctx)
	if err != nil {
		return fmt.Errorf("llmstream: restore model selection: %w", err)
	}
	if id != "" && !g.registry.SetActive(id) {
		g.logger.Warn("stored model no longer in catalog", "model", id)
	}
	return nil
}

func (g *Gateway) modelIDs() []string {
	entries := g.registry.List()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

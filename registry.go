package llmstream

import (
	"context"
	"fmt"
	"sync"
)

// SelectionStore persists the active model id across processes.
type SelectionStore interface {
	// LoadActive returns the stored model id, or "" if none was saved.
	LoadActive(ctx context.Context) (string, error)

	// SaveActive stores the model id.
	SaveActive(ctx context.Context, modelID string) error
}

// Registry is the ordered model catalog plus the active model selection.
type Registry struct {
	entries []ModelEntry
	index   map[string]int

	mu     sync.RWMutex
	active string
}

// NewRegistry creates a Registry from an ordered catalog.
// The first entry is the default active model.
func NewRegistry(entries []ModelEntry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("llmstream: registry: at least one model is required")
	}

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("llmstream: registry: entry[%d]: id is required", i)
		}
		if e.Provider == nil {
			return nil, fmt.Errorf("llmstream: registry: entry[%d] (%s): provider is required", i, e.ID)
		}
		if _, dup := index[e.ID]; dup {
			return nil, fmt.Errorf("llmstream: registry: duplicate model id %q", e.ID)
		}
		index[e.ID] = i
	}

	return &Registry{
		entries: append([]ModelEntry(nil), entries...),
		index:   index,
	}, nil
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id string) (ModelEntry, bool) {
	i, ok := r.index[id]
	if !ok {
		return ModelEntry{}, false
	}
	return r.entries[i], true
}

// Active returns the selected model, falling back to the first catalog entry.
func (r *Registry) Active() ModelEntry {
	r.mu.RLock()
	id := r.active
	r.mu.RUnlock()

	if e, ok := r.Lookup(id); ok {
		return e
	}
	return r.entries[0]
}

// SetActive selects id. Unknown ids return false and leave the selection unchanged.
func (r *Registry) SetActive(id string) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}

	r.mu.Lock()
	r.active = id
	r.mu.Unlock()
	return true
}

// List returns the catalog in order.
func (r *Registry) List() []ModelEntry {
	return append([]ModelEntry(nil), r.entries...)
}

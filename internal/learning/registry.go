package learning

import "sync"

// ModelRegistry keeps trained models in memory by run id.
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]Model
}

// NewModelRegistry creates an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{models: make(map[string]Model)}
}

// Put stores m under runID, replacing any previous entry.
func (r *ModelRegistry) Put(runID string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[runID] = m
}

// Get returns the model for runID.
func (r *ModelRegistry) Get(runID string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[runID]
	return m, ok
}

// Len returns the number of stored models.
func (r *ModelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/recondesk-dev/recondesk/internal/model"
)

// Registry holds the workflows known to one engine instance. It is an
// explicit handle passed into every operation; there is no process-wide
// workflow state, so independent engines can coexist safely.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workflows: make(map[string]*Workflow)}
}

// Create registers a new workflow starting at IMPORTED.
func (r *Registry) Create(id string) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; ok {
		return nil, fmt.Errorf("workflow %s already exists", id)
	}
	w := New(id)
	r.workflows[id] = w
	return w, nil
}

// Adopt registers an already-built workflow, typically one restored from
// persisted history.
func (r *Registry) Adopt(w *Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[w.ID]; ok {
		return fmt.Errorf("workflow %s already exists", w.ID)
	}
	r.workflows[w.ID] = w
	return nil
}

// Get returns the workflow with the given id.
func (r *Registry) Get(id string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[id]
	return w, ok
}

// Transition advances the identified workflow. See Workflow.Transition.
func (r *Registry) Transition(id string, target State, actor model.Actor, justification string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workflows[id]
	if !ok {
		return fmt.Errorf("workflow %s not found", id)
	}
	return w.Transition(target, actor, justification, now)
}

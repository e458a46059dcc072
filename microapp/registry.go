// Package microapp implements the isolation layer for embedded
// micro-app instances: per-instance local variable scopes resolved
// against the shared global scope, and deterministic namespacing of
// component names so two instances never collide on human-readable
// lookup keys. Isolation here is a namespacing convention inside one
// process, not an enforced security boundary.
package microapp

import (
	"sync"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/vars"
)

// SharedVariableRegistry owns the single authoritative global scope map
// shared by every micro-app instance, plus diagnostic bookkeeping of
// which instance ids are currently mounted.
type SharedVariableRegistry struct {
	mu       sync.Mutex
	global   *vars.Store
	bus      canvasflow.EventBus
	active   map[string]struct{}
	managers map[string]*VariableScopeManager
}

// NewSharedVariableRegistry creates a registry over the given global
// store. The bus, when non-nil, receives instance-scoped change events
// from every scope manager the registry hands out.
func NewSharedVariableRegistry(global *vars.Store, eventBus canvasflow.EventBus) *SharedVariableRegistry {
	return &SharedVariableRegistry{
		global:   global,
		bus:      eventBus,
		active:   make(map[string]struct{}),
		managers: make(map[string]*VariableScopeManager),
	}
}

var (
	defaultRegistry *SharedVariableRegistry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, creating it over a fresh
// store on first use. Code that already carries a store should prefer
// NewSharedVariableRegistry.
func Default() *SharedVariableRegistry {
	defaultOnce.Do(func() {
		defaultRegistry = NewSharedVariableRegistry(vars.NewStore(), nil)
	})
	return defaultRegistry
}

// Register obtains the scope manager for an instance id, creating it on
// first registration, and marks the id as mounted. A re-registering id
// receives its previous manager back, local variables intact: unmount
// does not clear local state, so remount preserves it.
func (r *SharedVariableRegistry) Register(instanceID string) *VariableScopeManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	manager, ok := r.managers[instanceID]
	if !ok {
		manager = &VariableScopeManager{
			instanceID: instanceID,
			local:      vars.NewStore(),
			registry:   r,
		}
		r.managers[instanceID] = manager
	}
	r.active[instanceID] = struct{}{}
	return manager
}

// Unregister marks an instance id as unmounted. The instance's local
// variables are deliberately left in place; only ClearAll wipes state,
// and that is global, not instance-scoped.
func (r *SharedVariableRegistry) Unregister(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, instanceID)
}

// ActiveInstances returns the mounted instance ids. Diagnostic use.
func (r *SharedVariableRegistry) ActiveInstances() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}

// Global returns the shared global store.
func (r *SharedVariableRegistry) Global() *vars.Store { return r.global }

// ClearAll wipes the global scope and every instance's local scope,
// reseeding built-in defaults everywhere.
func (r *SharedVariableRegistry) ClearAll() {
	r.mu.Lock()
	managers := make([]*VariableScopeManager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	r.global.Clear()
	for _, m := range managers {
		m.local.Clear()
	}
}

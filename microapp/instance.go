package microapp

import "github.com/google/uuid"

// State tracks the informal lifecycle of a micro-app instance.
type State string

const (
	StateUnmounted    State = "unmounted"
	StateRegistered   State = "registered"
	StateActive       State = "active"
	StateUnregistered State = "unregistered"
)

// Instance ties together the scope manager and namespace manager of one
// embedded micro-app.
type Instance struct {
	ID        string
	Scopes    *VariableScopeManager
	Namespace *ComponentNamespaceManager
	state     State
}

// NewInstance creates an unmounted instance with a generated id.
func NewInstance() *Instance {
	id := uuid.NewString()
	return &Instance{
		ID:        id,
		Namespace: NewComponentNamespaceManager(id),
		state:     StateUnmounted,
	}
}

// Mount registers the instance with the shared registry, obtaining its
// scope manager, and moves it to active.
func (i *Instance) Mount(registry *SharedVariableRegistry) {
	i.Scopes = registry.Register(i.ID)
	i.state = StateActive
}

// Unmount removes the instance from the registry's active set. Local
// variables survive; a later Mount sees them again.
func (i *Instance) Unmount(registry *SharedVariableRegistry) {
	registry.Unregister(i.ID)
	i.state = StateUnregistered
}

// State returns the current lifecycle state.
func (i *Instance) State() State { return i.state }

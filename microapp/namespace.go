package microapp

import (
	"strings"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

// ComponentNamespaceManager deterministically prefixes component names
// within a micro-app instance so two instances of the same app never
// collide on name-keyed lookups. UUIDs are left untouched; they are
// already globally unique.
type ComponentNamespaceManager struct {
	instanceID string
	prefix     string
}

// NewComponentNamespaceManager creates the manager for an instance id.
func NewComponentNamespaceManager(instanceID string) *ComponentNamespaceManager {
	return &ComponentNamespaceManager{
		instanceID: instanceID,
		prefix:     "microapp_" + instanceID + "__",
	}
}

// Prefix returns the namespace prefix applied to component names.
func (n *ComponentNamespaceManager) Prefix() string { return n.prefix }

// Apply returns the namespaced form of a component name.
func (n *ComponentNamespaceManager) Apply(name string) string {
	return n.prefix + name
}

// Strip returns the original name of a namespaced component. The second
// result is false when the name does not belong to this instance.
func (n *ComponentNamespaceManager) Strip(name string) (string, bool) {
	return strings.CutPrefix(name, n.prefix)
}

// Owns reports whether a component name carries this instance's
// namespace.
func (n *ComponentNamespaceManager) Owns(name string) bool {
	return strings.HasPrefix(name, n.prefix)
}

// NamespaceComponents rewrites every component's name in place,
// preserving the original in OriginalName, and assigns each a
// process-unique UniqueUUID so the runtime values store keys per
// instance. Already-namespaced components are left alone, so the
// operation is idempotent.
func (n *ComponentNamespaceManager) NamespaceComponents(components []*canvasflow.Component) {
	for _, comp := range components {
		if n.Owns(comp.Name) {
			continue
		}
		comp.OriginalName = comp.Name
		comp.Name = n.Apply(comp.Name)
		comp.UniqueUUID = n.prefix + comp.UUID
	}
}

package microapp

import (
	"strings"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/vars"
)

// localScope is the scope key of an instance's private partition.
const localScope = "local"

// VariableScopeManager resolves variable access for one micro-app
// instance: a private local scope plus the shared global scope. Bare
// names resolve local first, then global; explicit "local." and
// "global." prefixes bypass the resolution order.
type VariableScopeManager struct {
	instanceID string
	local      *vars.Store
	registry   *SharedVariableRegistry
}

// InstanceID returns the owning instance id.
func (m *VariableScopeManager) InstanceID() string { return m.instanceID }

// splitScope separates an explicit scope prefix from a name. The second
// result is "" for bare names.
func splitScope(name string) (bare, scope string) {
	if rest, ok := strings.CutPrefix(name, "local."); ok {
		return rest, localScope
	}
	if rest, ok := strings.CutPrefix(name, "global."); ok {
		return rest, vars.GlobalScope
	}
	return name, ""
}

// Set writes a variable. Bare names write the local scope; "global.x"
// writes the shared global scope; "local.x" is explicit local. Local
// writes emit an instance-scoped event so two instances' views never
// cross-notify on local changes.
func (m *VariableScopeManager) Set(name string, value interface{}) {
	bare, scope := splitScope(name)
	if scope == vars.GlobalScope {
		m.registry.global.Set(vars.GlobalScope, bare, value)
		if m.registry.bus != nil {
			m.registry.bus.Emit(canvasflow.EventGlobalVariableChanged,
				map[string]interface{}{"name": bare, "value": value}, m.instanceID)
		}
		return
	}
	m.local.Set(localScope, bare, value)
	if m.registry.bus != nil {
		m.registry.bus.Emit(m.eventName(bare),
			map[string]interface{}{"name": bare, "value": value}, m.instanceID)
	}
}

// Get reads a variable. Bare names resolve local first, then fall back
// to global; explicit prefixes read exactly one scope. Unset variables
// read as nil.
func (m *VariableScopeManager) Get(name string) interface{} {
	bare, scope := splitScope(name)
	switch scope {
	case localScope:
		return m.local.Value(localScope, bare)
	case vars.GlobalScope:
		return m.registry.global.Value(vars.GlobalScope, bare)
	}
	if entry, ok := m.local.Get(localScope, bare); ok {
		return entry.Value
	}
	return m.registry.global.Value(vars.GlobalScope, bare)
}

// Has reports whether name resolves in either scope.
func (m *VariableScopeManager) Has(name string) bool {
	bare, scope := splitScope(name)
	switch scope {
	case localScope:
		_, ok := m.local.Get(localScope, bare)
		return ok
	case vars.GlobalScope:
		_, ok := m.registry.global.Get(vars.GlobalScope, bare)
		return ok
	}
	if _, ok := m.local.Get(localScope, bare); ok {
		return true
	}
	_, ok := m.registry.global.Get(vars.GlobalScope, bare)
	return ok
}

// LocalNames returns the names present in the local scope.
func (m *VariableScopeManager) LocalNames() []string {
	return m.local.Names(localScope)
}

// eventName builds the instance-scoped event for a local change.
func (m *VariableScopeManager) eventName(name string) string {
	return "microapp:" + m.instanceID + ":local:" + name
}

// SetVar implements the executor's variable binding: handler code
// running inside this instance resolves SetVar through the instance's
// scopes instead of the shared registry's global view.
func (m *VariableScopeManager) SetVar(name string, value interface{}) { m.Set(name, value) }

// GetVar implements the executor's variable binding.
func (m *VariableScopeManager) GetVar(name string) interface{} { return m.Get(name) }

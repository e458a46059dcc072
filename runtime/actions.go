package runtime

import (
	"fmt"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

// Component-tree mutation actions. The runtime API surface calls these
// by name; each mutates the authoritative tree store, then signals
// tree change so the derived indices re-register. Call sites fire and
// assume eventual consistency through the reactive tree store.

// AddComponent appends comp to its application's component list.
func (c *Context) AddComponent(comp *canvasflow.Component) error {
	c.mu.Lock()
	app, ok := c.tree[comp.ApplicationID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("application %s not registered", comp.ApplicationID)
	}
	if _, exists := c.byUUID[comp.UUID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("component uuid %s already exists", comp.UUID)
	}
	app.Components = append(app.Components, comp)
	c.mu.Unlock()

	c.bus.Emit(EventTreeChanged, nil, "")
	return nil
}

// DeleteComponent removes the component with the given uuid from its
// application, dropping it from every parent's ChildrenIDs as well.
func (c *Context) DeleteComponent(uuid string) error {
	c.mu.Lock()
	comp, ok := c.byUUID[uuid]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("component %s not found", uuid)
	}
	app := c.tree[comp.ApplicationID]
	if app != nil {
		kept := app.Components[:0]
		for _, existing := range app.Components {
			if existing.UUID != uuid {
				kept = append(kept, existing)
			}
		}
		app.Components = kept
		for _, existing := range app.Components {
			ids := existing.ChildrenIDs[:0]
			for _, id := range existing.ChildrenIDs {
				if id != uuid {
					ids = append(ids, id)
				}
			}
			existing.ChildrenIDs = ids
		}
	}
	delete(c.values, comp.ValuesKey())
	delete(c.instanceCache, comp)
	delete(c.styleCache, comp)
	delete(c.inputErrors, comp.UUID)
	delete(c.styleOverrides, comp.UUID)
	c.mu.Unlock()

	c.bus.Emit(EventTreeChanged, nil, "")
	return nil
}

// UpdateComponentName renames a component.
func (c *Context) UpdateComponentName(uuid, name string) error {
	c.mu.Lock()
	comp, ok := c.byUUID[uuid]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("component %s not found", uuid)
	}
	comp.Name = name
	c.mu.Unlock()

	c.bus.Emit(EventTreeChanged, nil, "")
	return nil
}

// UpdateComponentInput replaces one declarative input of a component.
func (c *Context) UpdateComponentInput(uuid, input string, value canvasflow.Input) error {
	c.mu.Lock()
	comp, ok := c.byUUID[uuid]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("component %s not found", uuid)
	}
	if comp.Input == nil {
		comp.Input = make(map[string]canvasflow.Input)
	}
	comp.Input[input] = value
	c.mu.Unlock()

	c.bus.Emit(EventTreeChanged, nil, "")
	return nil
}

// UpdateComponentEvent replaces one event handler source of a
// component.
func (c *Context) UpdateComponentEvent(uuid, event, code string) error {
	c.mu.Lock()
	comp, ok := c.byUUID[uuid]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("component %s not found", uuid)
	}
	if comp.Event == nil {
		comp.Event = make(map[string]string)
	}
	comp.Event[event] = code
	c.mu.Unlock()

	c.bus.Emit(EventTreeChanged, nil, "")
	return nil
}

// UpdateComponentStyle writes one style property. When pseudoState is
// non-empty (e.g. ":hover") the write is nested under that pseudo-state
// key, merged with any existing pseudo-state styles, so editing hover
// or focus states never clobbers the default state.
func (c *Context) UpdateComponentStyle(uuid, prop string, value interface{}, pseudoState string) error {
	c.mu.Lock()
	comp, ok := c.byUUID[uuid]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("component %s not found", uuid)
	}
	if comp.Style == nil {
		comp.Style = make(map[string]interface{})
	}
	if pseudoState == "" {
		comp.Style[prop] = value
	} else {
		nested, _ := comp.Style[pseudoState].(map[string]interface{})
		merged := make(map[string]interface{}, len(nested)+1)
		for k, v := range nested {
			merged[k] = v
		}
		merged[prop] = value
		comp.Style[pseudoState] = merged
	}
	c.mu.Unlock()

	c.bus.Emit(EventTreeChanged, nil, "")
	return nil
}

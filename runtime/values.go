package runtime

import (
	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/reactive"
)

// AttachValues lazily builds the Instance view of a component: a
// reactive object whose storage is the runtime values bag keyed by the
// component's ValuesKey, and whose writes additionally emit the
// component-scoped value-set event. At most one such object exists per
// component for the lifetime of the registry; repeated calls return the
// identical object.
func (c *Context) AttachValues(comp *canvasflow.Component) *reactive.Object {
	c.mu.Lock()
	if obj, ok := c.instanceCache[comp]; ok {
		c.mu.Unlock()
		return obj
	}
	key := comp.ValuesKey()
	bag, ok := c.values[key]
	if !ok {
		bag = make(map[string]interface{})
		c.values[key] = bag
	}
	c.mu.Unlock()

	obj := reactive.Wrap(bag, reactive.Config{
		Bus:      c.bus,
		Consumer: c.CurrentName,
		OnSet: func(prop string, value interface{}) {
			c.bus.Emit(canvasflow.ComponentValueSetEvent(key),
				reactive.Change{Property: prop, Value: value, Consumer: c.CurrentName()}, c.CurrentName())
		},
	})

	c.mu.Lock()
	// Another caller may have raced us; the first stored object wins so
	// the at-most-one guarantee holds.
	if existing, ok := c.instanceCache[comp]; ok {
		c.mu.Unlock()
		return existing
	}
	c.instanceCache[comp] = obj
	c.mu.Unlock()
	return obj
}

// ComponentValue reads one runtime value directly from the store,
// without dependency tracking.
func (c *Context) ComponentValue(valuesKey, prop string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bag, ok := c.values[valuesKey]
	if !ok {
		return nil, false
	}
	v, ok := bag[prop]
	return v, ok
}

// SetComponentValue writes one runtime value directly into the store,
// bypassing reactivity. Used by SSR hydration, which replays state
// before any consumer has subscribed.
func (c *Context) SetComponentValue(valuesKey, prop string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bag, ok := c.values[valuesKey]
	if !ok {
		bag = make(map[string]interface{})
		c.values[valuesKey] = bag
	}
	bag[prop] = value
}

// ComponentValues returns a copy of a component's runtime value bag.
func (c *Context) ComponentValues(valuesKey string) map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.values[valuesKey]))
	for k, v := range c.values[valuesKey] {
		out[k] = v
	}
	return out
}

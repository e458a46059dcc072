package runtime

import (
	"sync"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

// StyleCallback observes style writes made by handler code.
type StyleCallback func(prop string, value interface{})

// StyleWatcher is a mutation-observing view over a component's style
// bag. Writes invoke the callback only when the new value differs from
// the old by strict inequality; the authoritative style definition is
// never mutated — observed writes land in the registry's style
// override store instead.
type StyleWatcher struct {
	mu       sync.Mutex
	base     map[string]interface{}
	overlay  map[string]interface{}
	callback StyleCallback
}

// Get reads a style property, overlay first, then the authoritative
// definition.
func (w *StyleWatcher) Get(prop string) interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.overlay[prop]; ok {
		return v
	}
	return w.base[prop]
}

// Set records a style write and notifies the callback when the value
// actually changed.
func (w *StyleWatcher) Set(prop string, value interface{}) {
	w.mu.Lock()
	old := w.overlay[prop]
	if _, ok := w.overlay[prop]; !ok {
		old = w.base[prop]
	}
	changed := !strictEqual(old, value)
	if changed {
		w.overlay[prop] = value
	}
	cb := w.callback
	w.mu.Unlock()

	if changed && cb != nil {
		cb(prop, value)
	}
}

// Keys returns the union of base and overlay property names.
func (w *StyleWatcher) Keys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := make(map[string]struct{}, len(w.base)+len(w.overlay))
	keys := make([]string, 0, len(w.base)+len(w.overlay))
	for k := range w.base {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range w.overlay {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// strictEqual compares with ==, treating uncomparable operands as
// unequal rather than panicking.
func strictEqual(a, b interface{}) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// WatchStyleChanges builds (caching by component identity) a style
// watcher whose callback pushes writes into the runtime style override
// store. Repeated calls for the same component return the identical
// watcher with its callback replaced.
func (c *Context) WatchStyleChanges(comp *canvasflow.Component, cb StyleCallback) *StyleWatcher {
	c.mu.Lock()
	watcher, ok := c.styleCache[comp]
	if !ok {
		watcher = &StyleWatcher{
			base:    comp.Style,
			overlay: make(map[string]interface{}),
		}
		c.styleCache[comp] = watcher
	}
	c.mu.Unlock()

	uuid := comp.UUID
	watcher.mu.Lock()
	watcher.callback = func(prop string, value interface{}) {
		c.SetStyleOverride(uuid, prop, value)
		if cb != nil {
			cb(prop, value)
		}
	}
	watcher.mu.Unlock()
	return watcher
}

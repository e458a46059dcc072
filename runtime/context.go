// Package runtime implements the central registry binding the component
// trees, the variable store, the reactive views handler code sees, and
// the per-component runtime state together. One Context serves a whole
// process; every handler execution borrows it.
package runtime

import (
	"fmt"
	"sync"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/reactive"
	"github.com/canvasflow/canvasflow-go/vars"
)

// Refresh event names. The registry re-derives its indices whenever the
// tree store changes; these two events force the same re-derivation
// explicitly.
const (
	EventTreeChanged    = "tree:changed"
	EventRuntimeRefresh = "runtime:refresh"
)

// VariableStore is the store surface the registry needs. Both
// *vars.Store and *vars.PersistentStore satisfy it.
type VariableStore interface {
	Set(scope, name string, value interface{})
	Get(scope, name string) (vars.Entry, bool)
	Value(scope, name string) interface{}
	Type(scope, name string) string
	Names(scope string) []string
	Subscribe(scope, name string, sub vars.Subscriber) (cancel func())
	Clear()
}

// Context is the runtime registry. Construct with New; the zero value
// is unusable.
type Context struct {
	mu sync.RWMutex

	bus   canvasflow.EventBus
	store VariableStore

	// authoritative tree store, keyed by application id
	tree map[string]*canvasflow.Application

	// derived indices, rebuilt by RegisterApplications
	apps   map[string]map[string]*canvasflow.Component // app id -> name -> component
	byUUID map[string]*canvasflow.Component
	pages  map[string][]canvasflow.Page

	// current is the execution stack: the top entry is the component on
	// whose behalf handler code presently runs. A stack rather than a
	// single slot so nested executions restore the caller's view.
	current []*canvasflow.Component

	platform canvasflow.Platform

	// values is the runtime values store, keyed by each component's
	// ValuesKey. Entries are freed by UnloadApplication, not by garbage
	// collection of orphans.
	values map[string]map[string]interface{}

	instanceCache map[*canvasflow.Component]*reactive.Object
	styleCache    map[*canvasflow.Component]*StyleWatcher

	varsProxy  *reactive.Object
	propsProxy *reactive.Object

	// inputErrors holds per-component input resolution failures:
	// component uuid -> input name -> message.
	inputErrors map[string]map[string]string

	// styleOverrides is the runtime style attribute store populated by
	// style watchers during handler execution, keyed by component uuid.
	// It never mutates the authoritative component style definition.
	styleOverrides map[string]map[string]interface{}
}

// New creates a Context over the given bus and variable store and
// subscribes it to the tree-change and refresh events.
func New(eventBus canvasflow.EventBus, store VariableStore) *Context {
	ctx := &Context{
		bus:            eventBus,
		store:          store,
		tree:           make(map[string]*canvasflow.Application),
		apps:           make(map[string]map[string]*canvasflow.Component),
		byUUID:         make(map[string]*canvasflow.Component),
		pages:          make(map[string][]canvasflow.Page),
		values:         make(map[string]map[string]interface{}),
		instanceCache:  make(map[*canvasflow.Component]*reactive.Object),
		styleCache:     make(map[*canvasflow.Component]*StyleWatcher),
		inputErrors:    make(map[string]map[string]string),
		styleOverrides: make(map[string]map[string]interface{}),
		platform:       canvasflow.Platform{Kind: "desktop", Width: 1440},
	}

	ctx.varsProxy = reactive.Wrap(map[string]interface{}{}, reactive.Config{
		Scope:    "Vars",
		Bus:      eventBus,
		Consumer: ctx.CurrentName,
		OnSet: func(prop string, value interface{}) {
			store.Set(vars.GlobalScope, prop, value)
			eventBus.Emit(canvasflow.EventGlobalVariableChanged, reactive.Change{Property: prop, Value: value, Consumer: ctx.CurrentName()}, ctx.CurrentName())
		},
	})
	ctx.propsProxy = reactive.New(reactive.Config{
		Scope:    "Properties",
		Bus:      eventBus,
		Consumer: ctx.CurrentName,
	})

	eventBus.On(EventTreeChanged, func(canvasflow.Event) { ctx.RegisterApplications() })
	eventBus.On(EventRuntimeRefresh, func(canvasflow.Event) { ctx.RegisterApplications() })

	return ctx
}

// Bus returns the event bus the registry notifies through.
func (c *Context) Bus() canvasflow.EventBus { return c.bus }

// Store returns the variable store.
func (c *Context) Store() VariableStore { return c.store }

// VarsProxy returns the reactive view over global variables.
func (c *Context) VarsProxy() *reactive.Object { return c.varsProxy }

// PropsProxy returns the reactive view over component properties.
func (c *Context) PropsProxy() *reactive.Object { return c.propsProxy }

// SetApplications replaces the authoritative tree store contents and
// rebuilds all derived indices.
func (c *Context) SetApplications(apps []*canvasflow.Application) {
	c.mu.Lock()
	c.tree = make(map[string]*canvasflow.Application, len(apps))
	for _, app := range apps {
		c.tree[app.ID] = app
	}
	c.mu.Unlock()
	c.RegisterApplications()
}

// UpsertApplication adds or replaces one application in the tree store
// and rebuilds derived indices.
func (c *Context) UpsertApplication(app *canvasflow.Application) {
	c.mu.Lock()
	c.tree[app.ID] = app
	c.mu.Unlock()
	c.RegisterApplications()
}

// RegisterApplications re-derives the lookup tables from the tree
// store: name and uuid indices, live children references with parent
// back-pointers, runtime value seeding, and Instance attachment for
// components carrying a UniqueUUID. Idempotent; called on every tree
// mutation.
func (c *Context) RegisterApplications() {
	c.mu.Lock()

	c.apps = make(map[string]map[string]*canvasflow.Component, len(c.tree))
	c.byUUID = make(map[string]*canvasflow.Component)
	c.pages = make(map[string][]canvasflow.Page, len(c.tree))

	for appID, app := range c.tree {
		byName := make(map[string]*canvasflow.Component, len(app.Components))
		byUUID := make(map[string]*canvasflow.Component, len(app.Components))
		for _, comp := range app.Components {
			byName[comp.Name] = comp
			byUUID[comp.UUID] = comp
			c.byUUID[comp.UUID] = comp
		}
		c.apps[appID] = byName
		c.pages[appID] = app.Pages

		// Resolve the authoritative ChildrenIDs into derived caches.
		for _, comp := range app.Components {
			comp.Children = comp.Children[:0]
			for _, childID := range comp.ChildrenIDs {
				child, ok := byUUID[childID]
				if !ok {
					continue
				}
				child.Parent = comp
				comp.Children = append(comp.Children, child)
			}
		}

		// Seed runtime values with inline initial values not yet present.
		for _, comp := range app.Components {
			key := comp.ValuesKey()
			bag, ok := c.values[key]
			if !ok {
				bag = make(map[string]interface{})
				c.values[key] = bag
			}
			for name, input := range comp.Input {
				if input.Type != canvasflow.InputStatic {
					continue
				}
				if _, present := bag[name]; !present {
					bag[name] = input.Value
				}
			}
		}
	}
	c.mu.Unlock()

	// Seed declared application variables that handler code has not
	// already written.
	for appID, app := range c.tree {
		for name, value := range app.Variables {
			if _, ok := c.store.Get(appID, name); !ok {
				c.store.Set(appID, name, value)
			}
		}
	}

	// Attach Instance proxies outside the lock; AttachValues locks.
	for _, app := range c.tree {
		for _, comp := range app.Components {
			if comp.UniqueUUID != "" {
				c.AttachValues(comp)
			}
		}
	}

	c.bus.Emit(canvasflow.EventApplicationsRegistered, nil, "")
}

// UnloadApplication removes an application from the tree store and
// frees its runtime values, instance proxies, style watchers, input
// errors, and style overrides wholesale.
func (c *Context) UnloadApplication(appID string) {
	c.mu.Lock()
	app, ok := c.tree[appID]
	if ok {
		for _, comp := range app.Components {
			delete(c.values, comp.ValuesKey())
			delete(c.instanceCache, comp)
			delete(c.styleCache, comp)
			delete(c.inputErrors, comp.UUID)
			delete(c.styleOverrides, comp.UUID)
		}
		delete(c.tree, appID)
	}
	c.mu.Unlock()
	if ok {
		c.RegisterApplications()
	}
}

// Component returns the component with the given uuid, from any
// application.
func (c *Context) Component(uuid string) (*canvasflow.Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.byUUID[uuid]
	return comp, ok
}

// ComponentByName returns the component with the given name in the
// given application.
func (c *Context) ComponentByName(appID, name string) (*canvasflow.Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.apps[appID][name]
	return comp, ok
}

// Application returns the tree-store entry for appID.
func (c *Context) Application(appID string) (*canvasflow.Application, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	app, ok := c.tree[appID]
	return app, ok
}

// Applications returns the ids of every registered application.
func (c *Context) Applications() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.tree))
	for id := range c.tree {
		ids = append(ids, id)
	}
	return ids
}

// Pages returns the page list of appID.
func (c *Context) Pages(appID string) []canvasflow.Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pages[appID]
}

// ResolvePage finds a page by display name within appID.
func (c *Context) ResolvePage(appID, name string) (canvasflow.Page, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, page := range c.pages[appID] {
		if page.Name == name {
			return page, nil
		}
	}
	return canvasflow.Page{}, fmt.Errorf("page %q not found in application %s", name, appID)
}

// PushCurrent binds comp as the component handler code presently runs
// for. Always pair with PopCurrent, normally via defer.
func (c *Context) PushCurrent(comp *canvasflow.Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = append(c.current, comp)
}

// PopCurrent unbinds the most recent PushCurrent.
func (c *Context) PopCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.current) > 0 {
		c.current = c.current[:len(c.current)-1]
	}
}

// Current returns the component on top of the execution stack, or nil.
func (c *Context) Current() *canvasflow.Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.current) == 0 {
		return nil
	}
	return c.current[len(c.current)-1]
}

// CurrentName returns the name of the current component, or "".
func (c *Context) CurrentName() string {
	if comp := c.Current(); comp != nil {
		return comp.Name
	}
	return ""
}

// CurrentDepth reports the execution stack depth. Diagnostic use.
func (c *Context) CurrentDepth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.current)
}

// SetPlatform records the responsive platform currently rendered for.
func (c *Context) SetPlatform(p canvasflow.Platform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.platform = p
}

// Platform returns the current responsive platform.
func (c *Context) Platform() canvasflow.Platform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.platform
}

// SetGlobalVar writes a global variable through the reactive view, so
// store, mirror, and subscribers all observe the write.
func (c *Context) SetGlobalVar(name string, value interface{}) {
	c.varsProxy.Set(name, value)
}

// GetGlobalVar reads a global variable through the reactive view,
// recording the current component as a subscriber.
func (c *Context) GetGlobalVar(name string) interface{} {
	if !c.varsProxy.Has(name) {
		// First read of a variable set before the proxy existed (e.g.
		// restored from a persistent store): backfill the mirror.
		if entry, ok := c.store.Get(vars.GlobalScope, name); ok {
			c.varsProxy.Seed(name, entry.Value)
		}
	}
	return c.varsProxy.Get(name)
}

// SetContextVar writes a variable in the scope named by the component's
// application id, or by an explicit scope override.
func (c *Context) SetContextVar(name string, value interface{}, scope string, comp *canvasflow.Component) {
	if scope == "" && comp != nil {
		scope = comp.ApplicationID
	}
	c.store.Set(scope, name, value)
	c.bus.Emit(canvasflow.ScopedEvent(reactive.DefaultEventPrefix, scope, name),
		reactive.Change{Property: name, Value: value, Consumer: c.CurrentName()}, c.CurrentName())
}

// GetContextVar reads a variable from the component's application scope
// or an explicit override. Unset variables read as nil.
func (c *Context) GetContextVar(name string, scope string, comp *canvasflow.Component) interface{} {
	if scope == "" && comp != nil {
		scope = comp.ApplicationID
	}
	return c.store.Value(scope, name)
}

// SetInputError records an input resolution failure for a component.
func (c *Context) SetInputError(uuid, input, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputErrors[uuid] == nil {
		c.inputErrors[uuid] = make(map[string]string)
	}
	c.inputErrors[uuid][input] = message
}

// ClearInputError removes a recorded failure after a successful
// resolution.
func (c *Context) ClearInputError(uuid, input string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inputErrors[uuid], input)
}

// InputError returns the recorded failure for (uuid, input), if any.
func (c *Context) InputError(uuid, input string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.inputErrors[uuid][input]
	return msg, ok
}

// SetStyleOverride stores a runtime style write for a component without
// touching its authoritative style definition.
func (c *Context) SetStyleOverride(uuid, prop string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.styleOverrides[uuid] == nil {
		c.styleOverrides[uuid] = make(map[string]interface{})
	}
	c.styleOverrides[uuid][prop] = value
}

// StyleOverrides returns a copy of the runtime style overrides for a
// component.
func (c *Context) StyleOverrides(uuid string) map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.styleOverrides[uuid]))
	for k, v := range c.styleOverrides[uuid] {
		out[k] = v
	}
	return out
}

// Package reactive implements the dependency-tracking object layer of
// the runtime. An Object wraps a flat property bag: reads record the
// name of the currently executing consumer as a subscriber of the read
// property, writes notify every recorded subscriber through the event
// bus, and nested map values are wrapped on access so deep mutations
// are observable too.
package reactive

import (
	"sort"
	"sync"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

// maxNestingDepth caps nested wrapping so traversal of cyclic data
// terminates. Beyond the cap, raw values are returned unwrapped.
const maxNestingDepth = 64

// DefaultEventPrefix is used for scope-qualified change events when the
// config does not override it.
const DefaultEventPrefix = "runtime"

// Config describes how an Object reports changes.
type Config struct {
	// Scope labels the object in scope-qualified events, e.g. "Vars".
	// Empty disables the scope-qualified event.
	Scope string
	// Prefix is the leading segment of scope-qualified event names.
	// Defaults to DefaultEventPrefix.
	Prefix string
	// Bus receives all change events. Required for notification; a nil
	// bus makes the object a plain tracked bag.
	Bus canvasflow.EventBus
	// Consumer returns the name of the component on whose behalf code is
	// presently executing, or "" when none is bound.
	Consumer func() string
	// OnSet, when non-nil, runs after every non-short-circuited root
	// write, before event emission. Nested writes do not invoke it.
	OnSet func(prop string, value interface{})
	// OnDelete, when non-nil, runs after every root delete.
	OnDelete func(prop string)
}

// Change is the payload of every change event emitted by an Object.
type Change struct {
	// Property is the root-level property the change rolls up to.
	Property string
	// Path is the full dotted path of the written property.
	Path string
	// Value is the newly written value; nil for deletions.
	Value interface{}
	// Deleted marks deleteProperty-style changes.
	Deleted bool
	// Consumer is the execution context active at write time.
	Consumer string
}

// Object is a reactive property bag. Concurrent use is guarded, but the
// intended model is the single-threaded cooperative scheduling of the
// runtime.
type Object struct {
	mu     sync.RWMutex
	values map[string]interface{}
	// listeners maps property name to the set of consumer names that
	// read it through this object. The set is additive and never
	// cleared: a consumer that stops reading a property stays
	// subscribed. That matches the re-run-and-re-read access pattern of
	// handlers but is a known staleness risk for conditional reads.
	listeners map[string]map[string]struct{}
	cfg       Config

	// set for nested wrappers only
	root       *Object
	parentProp string
	parentPath string
	depth      int
}

// New creates an empty reactive object.
func New(cfg Config) *Object {
	return Wrap(map[string]interface{}{}, cfg)
}

// Wrap creates a reactive object over an existing property bag. The bag
// is used as backing storage, not copied.
func Wrap(values map[string]interface{}, cfg Config) *Object {
	if values == nil {
		values = map[string]interface{}{}
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultEventPrefix
	}
	return &Object{
		values:    values,
		listeners: make(map[string]map[string]struct{}),
		cfg:       cfg,
	}
}

func (o *Object) consumer() string {
	if o.cfg.Consumer == nil {
		return ""
	}
	return o.cfg.Consumer()
}

// record adds the current consumer (if any) to prop's subscriber set.
func (o *Object) record(prop string) {
	name := o.consumer()
	if name == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.listeners[prop]
	if !ok {
		set = make(map[string]struct{})
		o.listeners[prop] = set
	}
	set[name] = struct{}{}
}

// Get returns the value of prop, recording the current consumer as a
// subscriber. Map values are returned wrapped in a fresh nested object
// whose writes notify subscribers of prop on this object.
func (o *Object) Get(prop string) interface{} {
	o.record(prop)

	o.mu.RLock()
	value := o.values[prop]
	o.mu.RUnlock()

	if nested, ok := value.(map[string]interface{}); ok && o.depth < maxNestingDepth {
		return o.wrapNested(prop, nested)
	}
	return value
}

// wrapNested builds a fresh nested wrapper over child. Nested wrappers
// are constructed on every access rather than cached, so cyclic data
// cannot cause unbounded proxy construction, only bounded-depth
// traversal.
func (o *Object) wrapNested(prop string, child map[string]interface{}) *Object {
	root := o.root
	rollup := o.parentProp
	if root == nil {
		root = o
		rollup = prop
	}
	path := prop
	if o.parentPath != "" {
		path = o.parentPath + "." + prop
	}
	return &Object{
		values:     child,
		listeners:  make(map[string]map[string]struct{}),
		cfg:        o.cfg,
		root:       root,
		parentProp: rollup,
		parentPath: path,
		depth:      o.depth + 1,
	}
}

// Set writes prop. Writing a value deeply equal to the current one is a
// no-op that emits nothing. Otherwise every consumer recorded as a
// subscriber receives a targeted refresh event, and when a scope label
// is configured a single scope-qualified event is emitted as well.
func (o *Object) Set(prop string, value interface{}) {
	o.mu.Lock()
	old, existed := o.values[prop]
	if existed && Equal(old, value) {
		o.mu.Unlock()
		return
	}
	o.values[prop] = value
	o.mu.Unlock()

	if o.root == nil && o.cfg.OnSet != nil {
		o.cfg.OnSet(prop, value)
	}
	o.notify(prop, value, false)
}

// Delete removes prop, mirroring Set's notification without a value.
func (o *Object) Delete(prop string) {
	o.mu.Lock()
	_, existed := o.values[prop]
	delete(o.values, prop)
	o.mu.Unlock()
	if !existed {
		return
	}
	if o.root == nil && o.cfg.OnDelete != nil {
		o.cfg.OnDelete(prop)
	}
	o.notify(prop, nil, true)
}

func (o *Object) notify(prop string, value interface{}, deleted bool) {
	if o.cfg.Bus == nil {
		return
	}
	consumer := o.consumer()
	path := prop
	if o.parentPath != "" {
		path = o.parentPath + "." + prop
	}

	if o.root != nil {
		// Nested write: roll up to subscribers of the parent property on
		// the root object, and emit the finer-grained dotted event.
		change := Change{Property: o.parentProp, Path: path, Value: value, Deleted: deleted, Consumer: consumer}
		for _, name := range o.root.Subscribers(o.parentProp) {
			o.cfg.Bus.Emit(canvasflow.ComponentPropertyChangedEvent(name), change, consumer)
		}
		if o.cfg.Scope != "" {
			o.cfg.Bus.Emit(o.cfg.Scope+":"+path, change, consumer)
		}
		return
	}

	change := Change{Property: prop, Path: path, Value: value, Deleted: deleted, Consumer: consumer}
	for _, name := range o.Subscribers(prop) {
		o.cfg.Bus.Emit(canvasflow.ComponentPropertyChangedEvent(name), change, consumer)
	}
	if o.cfg.Scope != "" {
		o.cfg.Bus.Emit(canvasflow.ScopedEvent(o.cfg.Prefix, o.cfg.Scope, prop), change, consumer)
	}
}

// Seed writes prop without equality checks, hooks, or notification.
// Used to backfill a mirror from persisted state.
func (o *Object) Seed(prop string, value interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[prop] = value
}

// Has reports whether prop is present, without recording a read.
func (o *Object) Has(prop string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.values[prop]
	return ok
}

// Keys returns the property names currently present.
func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, 0, len(o.values))
	for k := range o.values {
		keys = append(keys, k)
	}
	return keys
}

// Subscribers returns the consumer names recorded for prop, sorted.
func (o *Object) Subscribers(prop string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.listeners[prop]))
	for name := range o.listeners[prop] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a shallow copy of the property bag.
func (o *Object) Snapshot() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]interface{}, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

// Path returns the dotted path of this wrapper relative to its root, ""
// for root objects.
func (o *Object) Path() string { return o.parentPath }

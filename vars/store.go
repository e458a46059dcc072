// Package vars implements the keyed variable store of the runtime: named
// values partitioned by scope ("global" or an application id), each entry
// carrying a type tag derived from its value, with change notification
// for subscribers. A persistent variant writes through to a pluggable
// storage backend on every set and restores state on construction.
package vars

import (
	"reflect"
	"sync"
)

// GlobalScope is the scope id shared by every application.
const GlobalScope = "global"

// Entry is one stored variable. Type is always recomputed from Value on
// write; it is descriptive metadata, never independently settable.
type Entry struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`

	subscribers map[int]Subscriber
}

// Subscriber receives the new entry after a write to the variable it is
// registered on.
type Subscriber func(scope, name string, entry Entry)

// DeriveType computes the type tag for a value, following script typeof
// semantics: nil is "null", slices and arrays are "array", all numeric
// kinds are "number", maps and structs are "object", funcs are
// "function".
func DeriveType(value interface{}) string {
	if value == nil {
		return "null"
	}
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return "number"
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Func:
		return "function"
	default:
		return "object"
	}
}

// Store is the in-memory scope map. The zero value is not usable; use
// NewStore.
type Store struct {
	mu     sync.RWMutex
	scopes map[string]map[string]*Entry
	nextID int
}

// NewStore creates an empty Store seeded with the built-in defaults in
// the global scope.
func NewStore() *Store {
	s := &Store{scopes: make(map[string]map[string]*Entry)}
	s.seedDefaults()
	return s
}

// seedDefaults installs the small set of built-in globals every fresh or
// cleared store carries.
func (s *Store) seedDefaults() {
	s.Set(GlobalScope, "isAuthenticated", false)
	s.Set(GlobalScope, "theme", "light")
}

// Set replaces the entry for (scope, name), recomputing the type tag
// from value, and fires change notification to any live subscribers.
// Subscriptions on an existing entry survive the replace.
func (s *Store) Set(scope, name string, value interface{}) {
	s.mu.Lock()
	vars, ok := s.scopes[scope]
	if !ok {
		vars = make(map[string]*Entry)
		s.scopes[scope] = vars
	}
	entry, ok := vars[name]
	if !ok {
		entry = &Entry{}
		vars[name] = entry
	}
	entry.Type = DeriveType(value)
	entry.Value = value
	subs := make([]Subscriber, 0, len(entry.subscribers))
	for _, sub := range entry.subscribers {
		subs = append(subs, sub)
	}
	snapshot := Entry{Type: entry.Type, Value: entry.Value}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(scope, name, snapshot)
	}
}

// Get returns the entry for (scope, name). The second result is false
// when the variable has never been set. Reading never creates state.
func (s *Store) Get(scope, name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.scopes[scope][name]
	if !ok {
		return Entry{}, false
	}
	return Entry{Type: entry.Type, Value: entry.Value}, true
}

// Value returns the stored value, or nil when unset.
func (s *Store) Value(scope, name string) interface{} {
	entry, ok := s.Get(scope, name)
	if !ok {
		return nil
	}
	return entry.Value
}

// Type returns the derived type tag, or "" when unset.
func (s *Store) Type(scope, name string) string {
	entry, ok := s.Get(scope, name)
	if !ok {
		return ""
	}
	return entry.Type
}

// Subscribe registers sub for writes to (scope, name), creating the
// entry lazily when it does not exist yet. The returned cancel func
// removes the subscription.
func (s *Store) Subscribe(scope, name string, sub Subscriber) (cancel func()) {
	s.mu.Lock()
	vars, ok := s.scopes[scope]
	if !ok {
		vars = make(map[string]*Entry)
		s.scopes[scope] = vars
	}
	entry, ok := vars[name]
	if !ok {
		entry = &Entry{Type: DeriveType(nil)}
		vars[name] = entry
	}
	if entry.subscribers == nil {
		entry.subscribers = make(map[int]Subscriber)
	}
	id := s.nextID
	s.nextID++
	entry.subscribers[id] = sub
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if entry.subscribers != nil {
				delete(entry.subscribers, id)
			}
		})
	}
}

// Names returns the variable names currently present in scope.
func (s *Store) Names(scope string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.scopes[scope]))
	for name := range s.scopes[scope] {
		names = append(names, name)
	}
	return names
}

// Scopes returns the scope ids currently present.
func (s *Store) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.scopes))
	for id := range s.scopes {
		ids = append(ids, id)
	}
	return ids
}

// Clear wipes every scope and reseeds the built-in defaults. This is the
// only bulk destruction the store supports; individual variables are
// never destroyed.
func (s *Store) Clear() {
	s.mu.Lock()
	s.scopes = make(map[string]map[string]*Entry)
	s.mu.Unlock()
	s.seedDefaults()
}

// Snapshot returns a deep-enough copy of the scope map for
// serialization: entries are copied, values are shared.
func (s *Store) Snapshot() map[string]map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]Entry, len(s.scopes))
	for scope, vars := range s.scopes {
		scopeOut := make(map[string]Entry, len(vars))
		for name, entry := range vars {
			scopeOut[name] = Entry{Type: entry.Type, Value: entry.Value}
		}
		out[scope] = scopeOut
	}
	return out
}

// Restore overlays a snapshot onto the store: snapshot entries replace
// matching entries, entries absent from the snapshot (seeded defaults
// included) are kept, and live subscriptions fire for every restored
// write. Type tags are rederived from the restored values rather than
// trusted.
func (s *Store) Restore(snapshot map[string]map[string]Entry) {
	for scope, vars := range snapshot {
		for name, entry := range vars {
			s.Set(scope, name, entry.Value)
		}
	}
}

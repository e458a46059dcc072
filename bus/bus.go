// Package bus implements the process-wide event dispatcher used for all
// cross-component notification in the runtime. Delivery is synchronous:
// Emit invokes every matching listener before returning, so listeners
// registered in the same tick observe the event in the same tick.
package bus

import (
	"sort"
	"sync"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

// Bus is a synchronous publish/subscribe dispatcher keyed by untyped
// string event names. The zero value is not usable; use New.
type Bus struct {
	mu      sync.RWMutex
	nextID  int
	byName  map[string]map[int]canvasflow.Handler
	anySubs map[int]canvasflow.Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		byName:  make(map[string]map[int]canvasflow.Handler),
		anySubs: make(map[int]canvasflow.Handler),
	}
}

// On registers h for the exact event name and returns a cancel function
// that removes the registration. Cancelling twice is a no-op.
func (b *Bus) On(name string, h canvasflow.Handler) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	subs, ok := b.byName[name]
	if !ok {
		subs = make(map[int]canvasflow.Handler)
		b.byName[name] = subs
	}
	subs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.byName[name]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.byName, name)
				}
			}
		})
	}
}

// OnAny registers h for every event regardless of name.
func (b *Bus) OnAny(h canvasflow.Handler) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.anySubs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.anySubs, id)
		})
	}
}

// Emit delivers the event to every listener registered for name and to
// every OnAny listener, synchronously, in registration order within each
// group. Listener panics are not recovered; handler-facing call sites
// wrap execution in their own error policy.
func (b *Bus) Emit(name string, payload interface{}, source string) {
	evt := canvasflow.Event{Name: name, Payload: payload, Source: source}

	b.mu.RLock()
	named := make([]canvasflow.Handler, 0, len(b.byName[name]))
	ids := make([]int, 0, len(b.byName[name]))
	for id := range b.byName[name] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		named = append(named, b.byName[name][id])
	}

	anyIDs := make([]int, 0, len(b.anySubs))
	for id := range b.anySubs {
		anyIDs = append(anyIDs, id)
	}
	sort.Ints(anyIDs)
	anySubs := make([]canvasflow.Handler, 0, len(anyIDs))
	for _, id := range anyIDs {
		anySubs = append(anySubs, b.anySubs[id])
	}
	b.mu.RUnlock()

	for _, h := range named {
		h(evt)
	}
	for _, h := range anySubs {
		h(evt)
	}
}

// ListenerCount reports the number of listeners registered for name.
// Diagnostic use only.
func (b *Bus) ListenerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byName[name])
}


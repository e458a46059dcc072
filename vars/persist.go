package vars

import (
	"context"
	"fmt"
	"log"
)

// Backend is a durable home for the scope map. Save receives a full
// snapshot; Load returns whatever was last saved (an empty map when
// nothing was).
type Backend interface {
	Load(ctx context.Context) (map[string]map[string]Entry, error)
	Save(ctx context.Context, snapshot map[string]map[string]Entry) error
	Close() error
}

// PersistentStore is a Store that writes its scope map through to a
// Backend on every Set and restores it on construction. Read paths are
// served entirely from memory.
type PersistentStore struct {
	*Store
	backend Backend
}

// NewPersistentStore restores any previously saved state from backend
// into a fresh store. Built-in defaults are seeded first, so restored
// values win over defaults.
func NewPersistentStore(ctx context.Context, backend Backend) (*PersistentStore, error) {
	store := NewStore()
	snapshot, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring variable store: %w", err)
	}
	store.Restore(snapshot)
	return &PersistentStore{Store: store, backend: backend}, nil
}

// Set writes the variable and persists the full scope map. Persistence
// failures are logged, not returned: a flaky backend must not break
// handler execution.
func (p *PersistentStore) Set(scope, name string, value interface{}) {
	p.Store.Set(scope, name, value)
	if err := p.backend.Save(context.Background(), p.Snapshot()); err != nil {
		log.Printf("vars: persisting %s.%s failed: %v", scope, name, err)
	}
}

// Clear wipes the store, reseeds defaults, and persists the result.
func (p *PersistentStore) Clear() {
	p.Store.Clear()
	if err := p.backend.Save(context.Background(), p.Snapshot()); err != nil {
		log.Printf("vars: persisting clear failed: %v", err)
	}
}

// Close releases the backend.
func (p *PersistentStore) Close() error {
	return p.backend.Close()
}

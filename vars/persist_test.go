package vars

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentStoreWritesThroughAndRestores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.json")
	ctx := context.Background()

	store, err := NewPersistentStore(ctx, NewFileBackend(path))
	require.NoError(t, err)

	store.Set(GlobalScope, "theme", "dark")
	store.Set("app-1", "count", float64(3))
	require.NoError(t, store.Close())

	// A fresh store over the same file sees the persisted state, with
	// restored values winning over seeded defaults.
	reopened, err := NewPersistentStore(ctx, NewFileBackend(path))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "dark", reopened.Value(GlobalScope, "theme"))
	assert.Equal(t, float64(3), reopened.Value("app-1", "count"))
	assert.Equal(t, false, reopened.Value(GlobalScope, "isAuthenticated"))
}

func TestPersistentStoreClearPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.json")
	ctx := context.Background()

	store, err := NewPersistentStore(ctx, NewFileBackend(path))
	require.NoError(t, err)
	store.Set("app-1", "count", 1)

	store.Clear()
	require.NoError(t, store.Close())

	reopened, err := NewPersistentStore(ctx, NewFileBackend(path))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Nil(t, reopened.Value("app-1", "count"))
	assert.Equal(t, "light", reopened.Value(GlobalScope, "theme"))
}

func TestFileBackendMissingFileIsEmpty(t *testing.T) {
	backend := NewFileBackend(filepath.Join(t.TempDir(), "never-written.json"))
	snapshot, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestBoltBackendRoundTrip(t *testing.T) {
	backend, err := NewBoltBackend(filepath.Join(t.TempDir(), "data", "vars.db"))
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	in := map[string]map[string]Entry{
		GlobalScope: {
			"theme": {Type: "string", Value: "dark"},
		},
		"app-1": {
			"count": {Type: "number", Value: float64(5)},
		},
	}
	require.NoError(t, backend.Save(ctx, in))

	out, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", out[GlobalScope]["theme"].Value)
	assert.Equal(t, float64(5), out["app-1"]["count"].Value)
}

// failingBackend always fails Save, to exercise the log-and-continue
// persistence policy.
type failingBackend struct{}

func (failingBackend) Load(context.Context) (map[string]map[string]Entry, error) {
	return map[string]map[string]Entry{}, nil
}
func (failingBackend) Save(context.Context, map[string]map[string]Entry) error {
	return errors.New("backend unavailable")
}
func (failingBackend) Close() error { return nil }

func TestSetSurvivesBackendFailure(t *testing.T) {
	store, err := NewPersistentStore(context.Background(), failingBackend{})
	require.NoError(t, err)

	// The write must land in memory even though persistence failed.
	assert.NotPanics(t, func() { store.Set(GlobalScope, "x", 1) })
	assert.Equal(t, 1, store.Value(GlobalScope, "x"))
}

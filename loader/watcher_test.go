package loader

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasflow/canvasflow-go/bus"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/vars"
)

func TestNewWatcherLoadsDirectoryOnce(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "app.json", jsonBundle)

	ctx := runtime.New(bus.New(), vars.NewStore())
	w, err := NewWatcher(dir, ctx)
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, []string{"app-1"}, ctx.Applications())
	_, ok := ctx.ComponentByName("app-1", "Label1")
	assert.True(t, ok)
}

func TestNewWatcherRejectsBrokenBundle(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "broken.json", "{not json")

	ctx := runtime.New(bus.New(), vars.NewStore())
	_, err := NewWatcher(dir, ctx)
	assert.Error(t, err)
}

func TestReloadKeepsPreviousStateOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "app.json", jsonBundle)

	ctx := runtime.New(bus.New(), vars.NewStore())
	w, err := NewWatcher(dir, ctx)
	require.NoError(t, err)
	defer w.watcher.Close()

	// Corrupt the bundle; the reload must leave the registration alone.
	writeBundle(t, dir, "app.json", "{broken")
	w.reload()
	assert.Equal(t, []string{"app-1"}, ctx.Applications())

	// A fixed bundle reloads normally.
	writeBundle(t, dir, "app.json", jsonBundle)
	w.reload()
	assert.Equal(t, []string{"app-1"}, ctx.Applications())
}

func TestRelevantFiltersEvents(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "a.json", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "a.YAML", Op: fsnotify.Create}))
	assert.True(t, relevant(fsnotify.Event{Name: "a.yml", Op: fsnotify.Remove}))
	assert.False(t, relevant(fsnotify.Event{Name: "a.json", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "a.swp", Op: fsnotify.Write}))
}

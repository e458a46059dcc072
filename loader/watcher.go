package loader

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/canvasflow/canvasflow-go/runtime"
)

// Watcher keeps a runtime registry synchronized with a bundle
// directory: every relevant file change reloads the directory and
// re-registers the applications, which re-derives all runtime indices.
type Watcher struct {
	dir      string
	ctx      *runtime.Context
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher loads dir once into ctx and prepares a filesystem watch
// over it. Call Run to start processing changes.
func NewWatcher(dir string, ctx *runtime.Context) (*Watcher, error) {
	apps, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	ctx.SetApplications(apps)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{dir: dir, ctx: ctx, watcher: fw, debounce: 250 * time.Millisecond}, nil
}

// Run processes filesystem events until ctx is cancelled. Bursts of
// events (editors typically write several per save) collapse into one
// reload per debounce window. Reload failures keep the previous
// registration and log the error.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("loader: watch error: %v", err)
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	apps, err := LoadDir(w.dir)
	if err != nil {
		log.Printf("loader: reload failed, keeping previous applications: %v", err)
		return
	}
	w.ctx.SetApplications(apps)
	log.Printf("loader: reloaded %d application(s) from %s", len(apps), w.dir)
}

func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Package watcher invalidates schema and plugin caches when validator
// files change on disk.
//
// The stores already detect edits through mtime checks; the watcher exists
// so cache entries are dropped eagerly and so coarse filesystems (1s mtime
// granularity) cannot serve a stale compile. It watches the validators
// root recursively and debounces bursts of events from editors that write
// through temp files.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sluicehq/sluice/internal/plugin"
	"github.com/sluicehq/sluice/internal/schema"
)

const debounceInterval = 500 * time.Millisecond

// Watcher monitors the validators directory tree.
type Watcher struct {
	root    string
	schemas *schema.Store
	plugins *plugin.Loader
	log     *slog.Logger

	fsw    *fsnotify.Watcher
	done   chan struct{}
	closed chan struct{}
}

// New creates a watcher over the validators root, invalidating the given
// stores on changes. A nil logger defaults to slog.Default().
func New(root string, schemas *schema.Store, plugins *plugin.Loader, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    root,
		schemas: schemas,
		plugins: plugins,
		log:     log,
		fsw:     fsw,
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	<-w.closed
	return err
}

// addRecursive registers dir and every subdirectory. A missing root is
// fine; directories created later are picked up from create events.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.closed)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.fsw.Add(ev.Name); err != nil {
						w.log.Warn("watch add failed", "dir", ev.Name, "error", err)
					}
				}
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounceInterval)
			} else {
				timer.Reset(debounceInterval)
			}
			fire = timer.C
		case <-fire:
			for path := range pending {
				w.invalidate(path)
			}
			pending = make(map[string]struct{})
			fire = nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// invalidate drops the cache entry behind one changed path.
func (w *Watcher) invalidate(path string) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, schema.Ext):
		w.schemas.Invalidate(path)
		w.log.Debug("schema cache invalidated", "path", path)
	case base == plugin.FileName:
		// flows/<flowId>/plugin.yaml
		flowID := filepath.Base(filepath.Dir(path))
		w.plugins.Invalidate(flowID)
		w.log.Debug("plugin cache invalidated", "flow", flowID)
	}
}

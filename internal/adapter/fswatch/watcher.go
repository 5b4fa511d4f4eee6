// Package fswatch reports out-of-band edits to the tasks directory.
package fswatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Strob0t/taskdeck/internal/sandbox"
)

// NotifyFunc receives the base names of the task files touched during one
// debounce window.
type NotifyFunc func(ctx context.Context, names []string)

// Watcher watches one directory for task record changes. Writes made by this
// process are reported too; listeners treat every notification as a hint to
// refetch.
type Watcher struct {
	dir      string
	debounce time.Duration
	notify   NotifyFunc
	fw       *fsnotify.Watcher
}

// New starts watching dir, which must exist.
func New(dir string, debounce time.Duration, notify NotifyFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, debounce: debounce, notify: notify, fw: fw}, nil
}

// Run delivers debounced notifications until ctx is cancelled, then closes
// the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fw.Close() }()
	slog.Info("watching tasks directory", "dir", w.dir, "debounce", w.debounce)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !sandbox.IsTaskFileName(name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[name] = struct{}{}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "dir", w.dir, "error", err)

		case <-timer.C:
			names := make([]string, 0, len(pending))
			for n := range pending {
				names = append(names, n)
			}
			sort.Strings(names)
			clear(pending)

			slog.Debug("tasks directory changed", "files", len(names))
			w.notify(ctx, names)
		}
	}
}

package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces the burst of write events a sheet export
// produces into a single reload.
const DefaultDebounce = 2 * time.Second

// Watcher reloads the customer sheet when the exported CSV changes on
// disk. It watches the containing directory rather than the file itself
// because sheet exports replace the file instead of writing in place.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(context.Context)

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
}

// New creates a watcher for the sheet at path. onChange runs after the
// debounce delay once the file stops changing.
func New(path string, debounce time.Duration, onChange func(context.Context)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		watcher:  fsWatcher,
	}, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	log.WithField("path", w.path).Info("Watching customer sheet for changes")

	for {
		select {
		case <-ctx.Done():
			return w.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && w.isSheet(event.Name) {
				w.scheduleReload(ctx)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			if err != nil {
				log.WithError(err).Warn("Sheet watcher error")
			}
		}
	}
}

// Close cancels any pending reload and releases the file watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) isSheet(name string) bool {
	return filepath.Clean(name) == filepath.Clean(w.path)
}

// scheduleReload resets the debounce timer so a burst of events yields one
// reload after the last write settles.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		log.WithField("path", w.path).Info("Customer sheet changed, reloading")
		w.onChange(ctx)
	})
}

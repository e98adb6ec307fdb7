package namespace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherStarted is returned when Start is called twice
var ErrWatcherStarted = errors.New("watcher already started")

// Watcher reloads a Store whenever its policy file changes.
//
// The parent directory is watched rather than the file so that editors
// which replace the file by rename are still seen.
type Watcher struct {
	store  *Store
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher returns a watcher for path. Call Start to begin watching.
func NewWatcher(store *Store, path string) *Watcher {
	return &Watcher{
		store:  store,
		path:   filepath.Clean(path),
		logger: store.logger,
	}
}

// Start loads the file once and then reloads on every change until ctx
// is cancelled or Close is called. The initial load error, if any, is
// returned and nothing is started.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return ErrWatcherStarted
	}

	if _, err := w.store.LoadFile(w.path); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)

	w.logger.Info("watching namespace policy", "path", w.path)
	return nil
}

// Close stops watching and waits for the watch loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	fsw, cancel, done := w.fsw, w.cancel, w.done
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("namespace policy watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	errs, err := w.store.LoadFile(w.path)
	switch {
	case err != nil:
		w.logger.Error("namespace policy reload failed, keeping previous policy", "path", w.path, "error", err)
	case len(errs) > 0:
		w.logger.Warn("namespace policy reloaded with dropped entries", "path", w.path, "dropped", len(errs))
	}
}

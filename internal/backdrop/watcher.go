package backdrop

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"backdrop/internal/imageload"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

type Reloader interface {
	Reload() (State, error)
}

// Watcher reloads the backdrop when the local file it shows changes on disk.
// The parent directory is watched so files replaced by rename are noticed.
type Watcher struct {
	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	target    Reloader
	debounced func(func())
	path      string
	dir       string
	logger    *slog.Logger
	done      chan struct{}
}

func NewWatcher(target Reloader, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	watcher := &Watcher{
		fsWatcher: fsWatcher,
		target:    target,
		debounced: debounce.New(delay),
		logger:    logger,
		done:      make(chan struct{}),
	}
	go watcher.run()

	return watcher, nil
}

// Track follows url when it points to a local file and stops watching
// otherwise.
func (w *Watcher) Track(url string) error {
	path, ok := imageload.LocalPath(url)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !ok {
		w.untrackLocked()
		return nil
	}
	if path == w.path {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != w.dir {
		w.untrackLocked()
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dir = dir
	}
	w.path = path

	return nil
}

func (w *Watcher) HandleState(state State) {
	if err := w.Track(state.URL); err != nil {
		w.logger.Warn("backdrop watcher disabled for url", "url", state.URL, "error", err)
	}
}

func (w *Watcher) TrackedPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *Watcher) Close() error {
	err := w.fsWatcher.Close()
	<-w.done
	return err
}

func (w *Watcher) untrackLocked() {
	if w.dir != "" {
		if err := w.fsWatcher.Remove(w.dir); err != nil {
			w.logger.Debug("remove watched dir", "dir", w.dir, "error", err)
		}
	}
	w.dir = ""
	w.path = ""
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("backdrop watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	tracked := w.path
	w.mu.Unlock()

	if tracked == "" || filepath.Clean(event.Name) != tracked {
		return
	}

	w.debounced(w.reload)
}

func (w *Watcher) reload() {
	if _, err := w.target.Reload(); err != nil {
		w.logger.Warn("backdrop reload failed", "error", err)
		return
	}
	w.logger.Info("backdrop reloaded after file change", "path", w.TrackedPath())
}

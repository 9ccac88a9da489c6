package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

const (
	// DefaultDebounceInterval is how long the watcher waits after the last
	// change before reloading.
	DefaultDebounceInterval = 100 * time.Millisecond
)

// ReloadFunc receives the configuration reloaded after a file change.
type ReloadFunc func(*Config)

// ErrorFunc receives load and watch errors.
type ErrorFunc func(error)

// Watcher reloads a configuration file when it changes on disk.
type Watcher struct {
	path     string
	onReload ReloadFunc
	onError  ErrorFunc
	debounce time.Duration

	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	started  bool
	pending  *time.Timer
	reloadMu sync.Mutex
}

// NewWatcher creates a watcher for the config file at path. The parent
// directory is watched so that editors replacing the file by rename are
// picked up. onError may be nil.
func NewWatcher(path string, onReload ReloadFunc, onError ErrorFunc) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	if onError == nil {
		onError = func(error) {}
	}

	return &Watcher{
		path:     abs,
		onReload: onReload,
		onError:  onError,
		debounce: DefaultDebounceInterval,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins watching. The directory holding the file must exist.
// Starting a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}
	select {
	case <-w.stopChan:
		return errors.NewClientError(errors.CONFIG_INVALID, "config watcher is closed", nil)
	default:
	}

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.started = true
	go w.processEvents()
	return nil
}

// Close stops the watcher and waits for its goroutine to exit. It is safe
// to call whether or not Start succeeded.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.stopChan)
		w.watcher.Close()

		w.mu.Lock()
		started := w.started
		if w.pending != nil {
			w.pending.Stop()
			w.pending = nil
		}
		w.mu.Unlock()

		if started {
			<-w.doneChan
		}

		// Wait out a reload that already started.
		w.reloadMu.Lock()
		w.reloadMu.Unlock()
	})
}

func (w *Watcher) processEvents() {
	defer close(w.doneChan)

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopChan:
		return
	default:
	}

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	select {
	case <-w.stopChan:
		return
	default:
	}

	// A removed file means an editor is mid-rename; the Create that follows
	// triggers another reload.
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		return
	}

	cfg, err := Load(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.onError(err)
		return
	}
	w.onReload(cfg)
}

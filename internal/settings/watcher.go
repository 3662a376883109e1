package settings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
)

// DefaultDebounce is how long the watcher waits after the last file event
// before reloading.
const DefaultDebounce = 300 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration for file change events.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithReloadHook is called after every reload attempt with the installed
// snapshot or the error that kept the previous one in place.
func WithReloadHook(fn func(*Snapshot, error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// Watcher reloads a settings file into a Store when its content changes. It
// watches the parent directory so editors that save by renaming are seen.
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	logger   *logger.Logger
	onReload func(*Snapshot, error)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	lastHash  string

	mu      sync.Mutex
	pending time.Time
}

// NewWatcher creates a watcher for path. Start must be called to begin watching.
func NewWatcher(store *Store, path string, log *logger.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:    store,
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   log.With("component", "settings_watcher", "path", path),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start records the current file hash and begins watching.
func (w *Watcher) Start() error {
	hash, err := hashFile(w.path)
	if err != nil {
		return fmt.Errorf("settings watcher: initial hash: %w", err)
	}
	w.lastHash = hash

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("settings watcher: watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for the background goroutine. It is
// safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(err, "settings watcher error")

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	ready := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
	if ready {
		w.pending = time.Time{}
	}
	w.mu.Unlock()

	if ready {
		w.reload()
	}
}

// reload installs the file when its content hash changed. A file that fails
// to parse or validate leaves the previous snapshot installed.
func (w *Watcher) reload() {
	hash, err := hashFile(w.path)
	if err != nil {
		w.logger.Error(err, "settings watcher: failed to hash settings")
		w.notify(nil, err)
		return
	}
	if hash == w.lastHash {
		w.logger.Debug("settings unchanged, skipping reload")
		return
	}

	snap, err := w.store.LoadFile(context.Background(), w.path)
	if err != nil {
		w.logger.Warn("settings reload failed, keeping previous snapshot")
		w.notify(nil, err)
		return
	}
	w.lastHash = hash
	w.logger.With("version", snap.Version, "hash", hash[:8]).Info("settings reloaded")
	w.notify(snap, nil)
}

func (w *Watcher) notify(snap *Snapshot, err error) {
	if w.onReload != nil {
		w.onReload(snap, err)
	}
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

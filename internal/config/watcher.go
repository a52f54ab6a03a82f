package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

// DefaultDebounceDelay coalesces bursts of file events into one reload.
const DefaultDebounceDelay = 100 * time.Millisecond

// ConfigCallback is called with each successfully loaded configuration.
type ConfigCallback func(*ProxyConfig)

// ErrorCallback is called when a reload fails.
type ErrorCallback func(error)

// Watcher watches the configuration file and reloads it on change.
type Watcher struct {
	path          string
	fsWatcher     *fsnotify.Watcher
	onChange      ConfigCallback
	onError       ErrorCallback
	logger        observability.Logger
	debounceDelay time.Duration

	mu      sync.RWMutex
	current *ProxyConfig
	digest  [sha256.Size]byte
	running bool

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the callback invoked when a reload fails.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.onError = callback
	}
}

// NewWatcher creates a watcher for the file at path. onChange receives every
// configuration that loads and validates.
func NewWatcher(path string, onChange ConfigCallback, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		fsWatcher:     fsWatcher,
		onChange:      onChange,
		logger:        observability.NopLogger(),
		debounceDelay: DefaultDebounceDelay,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start loads the configuration once and begins watching the file's
// directory. The initial load does not invoke the change callback.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	cfg, digest, err := w.load()
	if err != nil {
		return err
	}

	// Watching the directory survives editors and volume mounts that
	// replace the file rather than writing it.
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.mu.Lock()
	w.current = cfg
	w.digest = digest
	w.running = true
	w.mu.Unlock()

	w.logger.Info("watching configuration file",
		observability.String("path", w.path),
	)

	go w.watch(ctx)
	return nil
}

// Stop stops watching and releases the file watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.fsWatcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.fsWatcher.Close()
}

// Config returns the last configuration that loaded and validated.
func (w *Watcher) Config() *ProxyConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ForceReload reloads the configuration immediately, even when the file
// content has not changed.
func (w *Watcher) ForceReload() error {
	cfg, digest, err := w.load()
	if err != nil {
		return err
	}
	w.publish(cfg, digest)
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file changed",
				observability.String("path", event.Name),
				observability.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounceDelay)
			} else {
				timer.Reset(w.debounceDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", observability.Error(err))
			w.reportError(err)
		}
	}
}

// relevant reports whether event touches the watched file. Mounted
// ConfigMaps swap a symlink in the same directory, which shows up as a
// Create or Rename of a sibling entry.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == w.path || filepath.Base(name) == "..data"
}

func (w *Watcher) reload() {
	cfg, digest, err := w.load()
	if err != nil {
		w.logger.Error("configuration reload rejected",
			observability.String("path", w.path),
			observability.Error(err),
		)
		w.reportError(err)
		return
	}

	w.mu.RLock()
	unchanged := digest == w.digest
	w.mu.RUnlock()
	if unchanged {
		w.logger.Debug("configuration unchanged, skipping reload")
		return
	}

	w.publish(cfg, digest)
	w.logger.Info("configuration reloaded", observability.String("path", w.path))
}

// load reads, parses and validates the file, returning the digest of the
// raw bytes alongside the configuration.
func (w *Watcher) load() (*ProxyConfig, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, fmt.Errorf("failed to read config file %s: %w", w.path, err)
	}
	digest := sha256.Sum256(data)

	cfg, err := LoadConfigFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, digest, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, digest, err
	}
	return cfg, digest, nil
}

func (w *Watcher) publish(cfg *ProxyConfig, digest [sha256.Size]byte) {
	w.mu.Lock()
	w.current = cfg
	w.digest = digest
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil && !errors.Is(err, context.Canceled) {
		w.onError(err)
	}
}

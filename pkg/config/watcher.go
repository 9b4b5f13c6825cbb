package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a configuration file when it changes and hands the new,
// validated Config to a callback. Invalid files are logged and skipped so the
// previous configuration stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config) error
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewWatcher creates a watcher for path. Call Start to begin watching.
func NewWatcher(path string, onChange func(*Config) error, logger *slog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		path:     absPath,
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period between the last file event and the
// reload. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	// Watch the directory because some editors write a temp file and rename it.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.running = true

	w.logger.Info("Config watcher started", "config_path", w.path)
	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and releases its file descriptors.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	return w.watcher.Close()
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigFileEvent(event) {
				continue
			}

			w.logger.Debug("Config file event detected", "event", event.Op.String(), "file", event.Name)

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounce, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "error", err)

		case <-w.stopCh:
			w.logger.Info("Config watcher stopped")
			return

		case <-ctx.Done():
			w.logger.Info("Config watcher context cancelled")
			return
		}
	}
}

func (w *Watcher) isConfigFileEvent(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return eventPath == w.path
}

func (w *Watcher) reload() {
	w.logger.Info("Config file changed, triggering reload", "config_path", w.path)

	start := time.Now()
	cfg, err := Load(w.path)
	if err == nil {
		err = w.onChange(cfg)
	}
	if err != nil {
		w.logger.Error("Config reload failed", "error", err, "duration", time.Since(start))
		return
	}
	w.logger.Info("Config reload completed successfully", "duration", time.Since(start))
}

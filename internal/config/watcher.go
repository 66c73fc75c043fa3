package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 100 * time.Millisecond

// FileWatcher notifies listeners when a configuration file changes on disk.
// Bursts of writes are collapsed into a single notification.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	mu       sync.RWMutex
	onChange []func(path string)
	logger   *zap.Logger
	debounce time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for path. The parent directory is watched
// as well so editors that save by rename are picked up.
func NewFileWatcher(path string, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &FileWatcher{
		path:     path,
		watcher:  watcher,
		logger:   logger,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// OnChange registers a callback for file changes
func (w *FileWatcher) OnChange(handler func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Start begins watching for changes
func (w *FileWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped", zap.String("path", w.path))
	})
}

func (w *FileWatcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.notify)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *FileWatcher) notify() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	w.logger.Info("Configuration file changed", zap.String("path", w.path))

	w.mu.RLock()
	handlers := append([]func(string){}, w.onChange...)
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler(w.path)
	}
}

package server

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/observability"

	"github.com/fsnotify/fsnotify"
)

// PromptWatcher reloads prompt templates from disk when their files change.
// A file that fails to load leaves the previous prompt active.
type PromptWatcher struct {
	mu sync.RWMutex

	// kind ("system" or "user") -> absolute path
	files       map[string]string
	lastModTime map[string]time.Time

	store *ai.PromptStore
	om    *observability.ObservabilityManager

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	logger  *errors.Logger
	running bool
}

// NewPromptWatcher creates a watcher for the given prompt files
func NewPromptWatcher(files map[string]string, store *ai.PromptStore, debounceDelay time.Duration, om *observability.ObservabilityManager, logger *errors.Logger) (*PromptWatcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no prompt files to watch")
	}
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}

	abs := make(map[string]string, len(files))
	for kind, path := range files {
		p, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s prompt file %s: %w", kind, path, err)
		}
		abs[kind] = p
	}

	return &PromptWatcher{
		files:         abs,
		lastModTime:   make(map[string]time.Time),
		store:         store,
		om:            om,
		debounceDelay: debounceDelay,
		logger:        logger,
	}, nil
}

// Start begins watching the prompt files
func (pw *PromptWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("prompt watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch directories so atomic replaces (write temp, rename) are seen
	dirs := map[string]struct{}{}
	for _, path := range pw.files {
		dirs[filepath.Dir(path)] = struct{}{}
		if stat, err := os.Stat(path); err == nil {
			pw.lastModTime[path] = stat.ModTime()
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	pw.fsWatcher = watcher
	pw.stopChan = make(chan struct{})
	pw.reloadChan = make(chan struct{}, 1)
	pw.running = true
	go pw.watchLoop(watcher, pw.stopChan, pw.reloadChan)

	pw.logger.Info("Prompt file watcher started",
		"files", pw.watchedFilesLocked(),
		"debounce_delay", pw.debounceDelay)
	return nil
}

// Stop stops the watcher
func (pw *PromptWatcher) Stop() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.running {
		return nil
	}

	close(pw.stopChan)
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.running = false

	if err := pw.fsWatcher.Close(); err != nil {
		pw.logger.LogError(err, "Failed to close prompt file watcher")
		return err
	}

	pw.logger.Info("Prompt file watcher stopped")
	return nil
}

func (pw *PromptWatcher) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}, reload <-chan struct{}) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if pw.isWatchedEvent(event) {
				pw.scheduleReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			pw.logger.LogError(err, "Prompt file watcher error")

		case <-reload:
			pw.ReloadChanged()

		case <-stop:
			return
		}
	}
}

func (pw *PromptWatcher) isWatchedEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)

	pw.mu.RLock()
	defer pw.mu.RUnlock()
	for _, path := range pw.files {
		if name == path {
			return true
		}
	}
	return false
}

func (pw *PromptWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.running {
		return
	}
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	reload := pw.reloadChan
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	})
}

// ReloadChanged reloads every prompt file whose modification time advanced
// and returns the kinds that were swapped in.
func (pw *PromptWatcher) ReloadChanged() []string {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	var reloaded []string
	for _, kind := range slices.Sorted(maps.Keys(pw.files)) {
		path := pw.files[kind]
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		if last, ok := pw.lastModTime[path]; ok && !stat.ModTime().After(last) {
			continue
		}
		pw.lastModTime[path] = stat.ModTime()

		content, err := config.LoadPromptFile(path, kind)
		if err != nil {
			pw.om.RecordPromptReload(context.Background(), kind, false)
			pw.logger.LogError(err, "Prompt reload failed, keeping previous prompt", "kind", kind)
			continue
		}

		if pw.store.Update(kind, content, config.PromptSourceFile) {
			pw.om.RecordPromptReload(context.Background(), kind, true)
			pw.logger.Info("Prompt reloaded", "kind", kind, "file", path, "characters", len(content))
			reloaded = append(reloaded, kind)
		}
	}
	return reloaded
}

// IsRunning returns whether the watcher is currently running
func (pw *PromptWatcher) IsRunning() bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.running
}

// WatchedFiles returns the watched prompt files keyed by kind
func (pw *PromptWatcher) WatchedFiles() map[string]string {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.watchedFilesLocked()
}

func (pw *PromptWatcher) watchedFilesLocked() map[string]string {
	return maps.Clone(pw.files)
}

// Package watcher re-applies the symbol rewrite to source files as they change.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Start on a watcher that is already running.
var ErrAlreadyRunning = errors.New("watcher already running")

// WatchConfig contains watcher settings.
type WatchConfig struct {
	DebounceMs        int      `json:"debounceMs" yaml:"debounceMs"`                               // Quiet period before a changed file is processed
	StableThresholdMs int      `json:"stableThresholdMs" yaml:"stableThresholdMs"`                 // File size must hold this long; 0 disables the check
	IgnorePatterns    []string `json:"ignorePatterns,omitempty" yaml:"ignorePatterns,omitempty"` // Glob patterns never processed
}

// DefaultWatchConfig returns a WatchConfig with sensible defaults.
func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceMs:        500,
		StableThresholdMs: 200,
		IgnorePatterns:    DefaultIgnorePatterns(),
	}
}

// WatchSummary contains stats from the watch session.
type WatchSummary struct {
	FilesModified  int
	FilesUnchanged int
	FilesIgnored   int
	Errors         int
	Duration       time.Duration
}

// FileHandler processes one changed file and reports whether it was rewritten.
type FileHandler func(path string) (modified bool, err error)

// Watcher monitors directories and hands settled source files to a FileHandler.
type Watcher struct {
	config      *WatchConfig
	fileHandler FileHandler
	fileFilter  *FileFilter
	debouncer   *Debouncer
	stability   *StabilityChecker
	logger      *zap.Logger

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup // event loop
	inflight  sync.WaitGroup // handler calls
	startTime time.Time

	mu             sync.Mutex
	stopped        bool
	filesModified  int
	filesUnchanged int
	filesIgnored   int
	errors         int
}

// New creates a Watcher. Files whose base name matches one of include (and
// none of config.IgnorePatterns) are passed to fileHandler once they settle.
// A nil config uses DefaultWatchConfig; a nil logger discards log output.
func New(config *WatchConfig, include []string, fileHandler FileHandler, logger *zap.Logger) *Watcher {
	if config == nil {
		config = DefaultWatchConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		config:      config,
		fileHandler: fileHandler,
		fileFilter:  NewFileFilter(include, config.IgnorePatterns),
		logger:      logger,
		done:        make(chan struct{}),
	}
	if config.StableThresholdMs > 0 {
		w.stability = NewStabilityChecker(time.Duration(config.StableThresholdMs) * time.Millisecond)
	}
	w.debouncer = NewDebouncer(time.Duration(config.DebounceMs)*time.Millisecond, w.onSettled)
	return w
}

// Start begins watching the specified directories. Subdirectories are not
// watched unless listed. The watcher runs until Stop is called.
func (w *Watcher) Start(dirs []string) error {
	if w.isRunning() {
		return ErrAlreadyRunning
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			fsWatcher.Close()
			return err
		}
		if err := fsWatcher.Add(absDir); err != nil {
			fsWatcher.Close()
			return err
		}
		w.logger.Debug("watching directory", zap.String("dir", absDir))
	}

	w.mu.Lock()
	w.fsWatcher = fsWatcher
	w.mu.Unlock()

	w.startTime = time.Now()
	w.done = make(chan struct{})
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop shuts the watcher down, waits for in-flight handler calls and
// returns a summary of the session. Pending debounced files are dropped.
func (w *Watcher) Stop() *WatchSummary {
	w.mu.Lock()
	alreadyStopped := w.stopped
	w.stopped = true
	w.mu.Unlock()

	if !alreadyStopped && w.fsWatcher != nil {
		close(w.done)
		w.cancel()
		w.wg.Wait()
		w.debouncer.CancelAll()
		w.inflight.Wait()
		w.fsWatcher.Close()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return &WatchSummary{
		FilesModified:  w.filesModified,
		FilesUnchanged: w.filesUnchanged,
		FilesIgnored:   w.filesIgnored,
		Errors:         w.errors,
		Duration:       time.Since(w.startTime),
	}
}

// processEvents handles file system events from fsnotify.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				w.handleFileEvent(event.Name)
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				w.debouncer.Cancel(event.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// handleFileEvent filters a changed path and schedules it for processing.
func (w *Watcher) handleFileEvent(path string) {
	if !w.fileFilter.ShouldProcess(path) {
		w.mu.Lock()
		w.filesIgnored++
		w.mu.Unlock()
		w.logger.Debug("ignoring change", zap.String("path", path))
		return
	}
	w.debouncer.Add(path)
}

// onSettled runs once a path has been quiet for the debounce delay.
func (w *Watcher) onSettled(path string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	if w.stability != nil {
		if err := w.stability.WaitForStable(w.ctx, path); err != nil {
			if err != ErrFileNotFound && w.ctx.Err() == nil {
				w.logger.Warn("file did not settle", zap.String("path", path), zap.Error(err))
				w.recordError()
			}
			return
		}
	}

	if w.fileHandler == nil {
		return
	}

	modified, err := w.fileHandler(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err != nil:
		w.errors++
		w.logger.Error("processing changed file failed", zap.String("path", path), zap.Error(err))
	case modified:
		w.filesModified++
	default:
		w.filesUnchanged++
	}
}

func (w *Watcher) recordError() {
	w.mu.Lock()
	w.errors++
	w.mu.Unlock()
}

// isRunning reports whether the watcher has been started and not stopped.
func (w *Watcher) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsWatcher != nil && !w.stopped
}

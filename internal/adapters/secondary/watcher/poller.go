package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// PollingWatcher reports changes to watched files by polling their size,
// mtime and checksum. Bursts of writes are coalesced: an event
// is emitted once the file has been quiet for the debounce window.
type PollingWatcher struct {
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	states  map[string]fileState
	events  chan ports.FileChangeEvent
	wg      sync.WaitGroup
	stopped bool
	stopCh  chan struct{}
}

// fileState is the last observed version of the watched file
type fileState struct {
	exists   bool
	size     int64
	modTime  time.Time
	checksum string
}

var _ ports.FileWatcher = (*PollingWatcher)(nil)

// NewPollingWatcher creates a watcher
func NewPollingWatcher(interval, debounce time.Duration, logger *slog.Logger) *PollingWatcher {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PollingWatcher{
		interval: interval,
		debounce: debounce,
		logger:   logger.With("component", "watcher"),
		states:   make(map[string]fileState),
		events:   make(chan ports.FileChangeEvent, 10),
		stopCh:   make(chan struct{}),
	}
}

// NewFromConfig creates a watcher from the [watcher] section
func NewFromConfig(cfg entities.WatcherConfig, logger *slog.Logger) *PollingWatcher {
	return NewPollingWatcher(cfg.GetInterval(), cfg.GetDebounce(), logger)
}

// Watch starts polling path. The returned channel is closed by Stop.
func (w *PollingWatcher) Watch(ctx context.Context, path string) (<-chan ports.FileChangeEvent, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	initial, err := snapshot(absPath)
	if err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}
	if !initial.exists {
		return nil, fmt.Errorf("initial scan: %w", fs.ErrNotExist)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, errors.New("watcher stopped")
	}
	w.states[absPath] = initial
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx, absPath)
	}()

	w.logger.Debug("watching file", "path", absPath, "interval", w.interval, "debounce", w.debounce)
	return w.events, nil
}

// Stop ends polling and closes the event channel
func (w *PollingWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	close(w.events)
	return nil
}

func (w *PollingWatcher) pollLoop(ctx context.Context, path string) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		pending    bool
		pendingTyp ports.ChangeType
		lastChange time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
		}

		typ, changed, err := w.check(path)
		if err != nil {
			w.logger.Warn("watch error", "path", path, "error", err)
			continue
		}
		if changed {
			// a delete followed by a recreate within one window is a modify
			if pending && pendingTyp == ports.Deleted && typ == ports.Created {
				typ = ports.Modified
			}
			pending, pendingTyp, lastChange = true, typ, time.Now()
		}
		if !pending || time.Since(lastChange) < w.debounce {
			continue
		}

		event := ports.FileChangeEvent{Path: path, Type: pendingTyp, Timestamp: time.Now()}
		select {
		case w.events <- event:
			pending = false
			w.logger.Debug("file changed", "path", path, "type", event.Type)
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

// check compares the file with the last observed state
func (w *PollingWatcher) check(path string) (ports.ChangeType, bool, error) {
	w.mu.Lock()
	old := w.states[path]
	w.mu.Unlock()

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !old.exists {
			return 0, false, nil
		}
		w.setState(path, fileState{})
		return ports.Deleted, true, nil
	case err != nil:
		return 0, false, fmt.Errorf("stat file: %w", err)
	}

	// size and mtime unchanged: skip the checksum
	if old.exists && old.size == info.Size() && old.modTime.Equal(info.ModTime()) {
		return 0, false, nil
	}

	sum, err := checksum(path)
	if err != nil {
		return 0, false, fmt.Errorf("calculate checksum: %w", err)
	}
	next := fileState{exists: true, size: info.Size(), modTime: info.ModTime(), checksum: sum}
	w.setState(path, next)

	if !old.exists {
		return ports.Created, true, nil
	}
	return ports.Modified, old.checksum != sum, nil
}

func (w *PollingWatcher) setState(path string, s fileState) {
	w.mu.Lock()
	w.states[path] = s
	w.mu.Unlock()
}

func snapshot(path string) (fileState, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileState{}, nil
	}
	if err != nil {
		return fileState{}, fmt.Errorf("stat file: %w", err)
	}
	sum, err := checksum(path)
	if err != nil {
		return fileState{}, fmt.Errorf("calculate checksum: %w", err)
	}
	return fileState{exists: true, size: info.Size(), modTime: info.ModTime(), checksum: sum}, nil
}

func checksum(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

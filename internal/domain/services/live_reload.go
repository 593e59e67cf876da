package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// ContentSink receives new markdown text
type ContentSink interface {
	OnContentChanged(text string) (ports.RenderPass, error)
}

// LiveReloadService feeds edits of a file on disk into the preview
type LiveReloadService struct {
	watcher     ports.FileWatcher
	sink        ports.Notifier
	preview     ContentSink
	logger      *slog.Logger
	readFile    func(string) ([]byte, error)
	mu          sync.Mutex
	watching    bool
	watchCancel context.CancelFunc
	done        chan struct{}
	path        string
}

// NewLiveReloadService creates a new live reload service. notifier may be
// nil; it only receives error events.
func NewLiveReloadService(
	watcher ports.FileWatcher,
	preview ContentSink,
	notifier ports.Notifier,
	logger *slog.Logger,
) *LiveReloadService {
	if logger == nil {
		logger = slog.Default()
	}

	return &LiveReloadService{
		watcher:  watcher,
		sink:     notifier,
		preview:  preview,
		readFile: os.ReadFile,
		logger:   logger.With("service", "live_reload"),
	}
}

// Start loads filePath into the preview and reloads it on every change
func (s *LiveReloadService) Start(ctx context.Context, filePath string) error {
	s.mu.Lock()
	if s.watching {
		s.mu.Unlock()
		return errors.New("already watching")
	}
	s.watching = true
	s.path = filePath
	s.mu.Unlock()

	if err := s.reload(filePath); err != nil {
		s.reset()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	events, err := s.watcher.Watch(watchCtx, filePath)
	if err != nil {
		cancel()
		s.reset()
		return fmt.Errorf("starting watcher: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.watchCancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.handleEvents(watchCtx, events)
	}()

	return nil
}

func (s *LiveReloadService) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watching = false
	s.path = ""
}

// Stop stops watching and waits for the event loop to exit
func (s *LiveReloadService) Stop() error {
	s.mu.Lock()
	if !s.watching {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.watchCancel, s.done
	s.watchCancel, s.done = nil, nil
	s.watching = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return s.watcher.Stop()
}

// IsWatching returns whether the service is currently watching
func (s *LiveReloadService) IsWatching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching
}

// Path returns the watched file
func (s *LiveReloadService) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *LiveReloadService) handleEvents(ctx context.Context, events <-chan ports.FileChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}

			s.logger.Info("file change detected",
				slog.String("path", event.Path),
				slog.String("type", event.Type.String()),
			)

			if event.Type == ports.Deleted {
				// keep showing the last content until the file comes back
				s.logger.Warn("watched file deleted", slog.String("path", event.Path))
				continue
			}

			if err := s.reload(event.Path); err != nil {
				s.logger.Error("failed to reload file",
					slog.String("error", err.Error()),
					slog.String("path", event.Path),
				)
				s.notifyError(event, err)
			}
		}
	}
}

func (s *LiveReloadService) reload(path string) error {
	content, err := s.readFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if _, err := s.preview.OnContentChanged(string(content)); err != nil {
		return fmt.Errorf("updating preview: %w", err)
	}
	s.logger.Debug("preview reloaded", slog.String("path", path), slog.Int("bytes", len(content)))
	return nil
}

func (s *LiveReloadService) notifyError(event ports.FileChangeEvent, err error) {
	if s.sink == nil {
		return
	}
	notifyErr := s.sink.NotifyClients(ports.UpdateEvent{
		Type:      ports.EventTypeError,
		Timestamp: event.Timestamp,
		Data: map[string]interface{}{
			"file":    event.Path,
			"message": "Failed to reload file",
		},
	})
	if notifyErr != nil {
		s.logger.Warn("failed to notify clients", slog.String("error", notifyErr.Error()))
	}
}

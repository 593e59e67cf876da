package services

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// PreviewService keeps one render tree in step with the edited markdown
// and the active theme
type PreviewService struct {
	extractor ports.BlockExtractor
	renderer  ports.PreviewRenderer
	logger    *slog.Logger

	mu       sync.Mutex
	notifier ports.Notifier
	content  string
	theme    entities.Theme
	doc      entities.ProcessedMarkdown
}

// PreviewState is what a freshly connected client needs to draw the page
type PreviewState struct {
	Title  string           `json:"title"`
	HTML   string           `json:"html"`
	Theme  entities.Theme   `json:"theme"`
	Blocks []entities.Block `json:"blocks"`
}

// NewPreviewService creates a preview service
func NewPreviewService(
	extractor ports.BlockExtractor,
	renderer ports.PreviewRenderer,
	theme entities.Theme,
	logger *slog.Logger,
) *PreviewService {
	if logger == nil {
		logger = slog.Default()
	}
	if !theme.Valid() {
		theme = entities.ThemeLight
	}
	return &PreviewService{
		extractor: extractor,
		renderer:  renderer,
		theme:     theme,
		logger:    logger.With("service", "preview"),
	}
}

// SetNotifier sets where preview and theme events are published
func (s *PreviewService) SetNotifier(n ports.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// OnContentChanged runs a new extraction pass over text, mounts the
// resulting slots and reconciles them. When the block ids are unchanged
// the slots are kept, so only blocks whose source changed render again.
func (s *PreviewService) OnContentChanged(text string) (ports.RenderPass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.content = text
	return s.remount(false)
}

// OnThemeChanged reconciles the current blocks under theme without
// extracting again, so slots and their zoom state are kept
func (s *PreviewService) OnThemeChanged(theme entities.Theme) (ports.RenderPass, error) {
	if !theme.Valid() {
		return nil, errors.New("invalid theme")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if theme == s.theme {
		return s.renderer.Reconcile(s.doc.Blocks, s.theme), nil
	}

	s.theme = theme
	pass := s.renderer.Reconcile(s.doc.Blocks, theme)

	s.logger.Info("theme changed", "theme", theme.String(), "token", pass.Token())
	s.publish(ports.EventTypeTheme, map[string]interface{}{
		"theme":      theme.String(),
		"background": theme.Background(),
		"foreground": theme.Foreground(),
	})
	return pass, nil
}

// Refresh extracts the current text again and re-renders every block
func (s *PreviewService) Refresh() (ports.RenderPass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remount(true)
}

// remount must be called with s.mu held
func (s *PreviewService) remount(force bool) (ports.RenderPass, error) {
	doc := s.extractor.Extract(s.content)
	if err := s.renderer.Mount(doc.HTML); err != nil {
		return nil, err
	}
	s.doc = doc

	var pass ports.RenderPass
	if force {
		pass = s.renderer.Refresh(doc.Blocks, s.theme)
	} else {
		pass = s.renderer.Reconcile(doc.Blocks, s.theme)
	}

	s.logger.Debug("preview mounted",
		"blocks", len(doc.Blocks),
		"diagrams", len(doc.Diagrams()),
		"refresh", force,
		"token", pass.Token(),
	)

	// code views are already mounted, diagrams follow as slot events
	s.publish(ports.EventTypePreview, map[string]interface{}{
		"title": doc.Title,
		"html":  s.renderer.Snapshot(),
	})
	return pass, nil
}

// State returns the current preview
func (s *PreviewService) State() PreviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PreviewState{
		Title:  s.doc.Title,
		HTML:   s.renderer.Snapshot(),
		Theme:  s.theme,
		Blocks: append([]entities.Block(nil), s.doc.Blocks...),
	}
}

// Content returns the markdown currently shown
func (s *PreviewService) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Theme returns the active theme
func (s *PreviewService) Theme() entities.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Block returns a block of the current pass
func (s *PreviewService) Block(id string) (entities.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Find(id)
}

func (s *PreviewService) publish(eventType string, data interface{}) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyClients(ports.UpdateEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		s.logger.Warn("failed to notify clients", "event_type", eventType, "error", err)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// DocumentService manages stored documents, the recent list and the
// current selection
type DocumentService struct {
	store  ports.DocumentStore
	logger *slog.Logger
	delay  time.Duration
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
}

type pendingSave struct {
	content string
	timer   *time.Timer
}

// NewDocumentService creates a document service. Autosaves are written
// once edits have been quiet for delay.
func NewDocumentService(store ports.DocumentStore, delay time.Duration, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &DocumentService{
		store:   store,
		logger:  logger.With("service", "documents"),
		delay:   delay,
		now:     time.Now,
		pending: make(map[string]*pendingSave),
	}
}

// Create stores a new document and makes it current
func (s *DocumentService) Create(ctx context.Context, title, content string) (*entities.Document, error) {
	now := s.now().UTC()
	doc := &entities.Document{
		ID:         uuid.NewString(),
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	if err := s.open(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document created", "id", doc.ID, "title", doc.Title)
	return doc, nil
}

// Get returns a document without touching the recent list
func (s *DocumentService) Get(ctx context.Context, id string) (*entities.Document, error) {
	if id == "" {
		return nil, errors.New("document id cannot be empty")
	}
	return s.store.Get(ctx, id)
}

// Load opens a document: it becomes current and moves to the front of
// the recent list
func (s *DocumentService) Load(ctx context.Context, id string) (*entities.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) open(ctx context.Context, doc *entities.Document) error {
	recent := entities.RecentFile{ID: doc.ID, Title: doc.Title, LastOpened: s.now().UTC()}
	if err := s.store.TouchRecent(ctx, recent, entities.MaxRecentFiles); err != nil {
		return fmt.Errorf("recording recent file: %w", err)
	}
	if err := s.store.SetCurrent(ctx, doc.ID); err != nil {
		return fmt.Errorf("setting current document: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of upd
func (s *DocumentService) Update(ctx context.Context, id string, upd entities.DocumentUpdate) (*entities.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title == nil && upd.Content == nil {
		return doc, nil
	}

	if upd.Title != nil {
		doc.Title = *upd.Title
	}
	if upd.Content != nil {
		doc.Content = *upd.Content
	}
	doc.ModifiedAt = s.now().UTC()
	if doc.ModifiedAt.Before(doc.CreatedAt) {
		doc.ModifiedAt = doc.CreatedAt
	}

	if err := s.store.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("updating document: %w", err)
	}
	return doc, nil
}

// Delete removes a document and drops any pending autosave for it
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if p, ok := s.pending[id]; ok {
		p.timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	s.logger.Info("document deleted", "id", id)
	return nil
}

// List returns every document, most recently modified first
func (s *DocumentService) List(ctx context.Context) ([]*entities.Document, error) {
	return s.store.List(ctx)
}

// Recent returns the recently opened documents
func (s *DocumentService) Recent(ctx context.Context) ([]entities.RecentFile, error) {
	return s.store.Recent(ctx)
}

// Current returns the selected document, or nil when there is none
func (s *DocumentService) Current(ctx context.Context) (*entities.Document, error) {
	id, err := s.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	doc, err := s.store.Get(ctx, id)
	if errors.Is(err, ports.ErrDocumentNotFound) {
		return nil, nil
	}
	return doc, err
}

// Autosave schedules content to be written to document id. Edits that
// arrive before the delay elapses replace the pending content.
func (s *DocumentService) Autosave(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if p, ok := s.pending[id]; ok {
		p.content = content
		p.timer.Reset(s.delay)
		return
	}

	p := &pendingSave{content: content}
	p.timer = time.AfterFunc(s.delay, func() { s.save(id) })
	s.pending[id] = p
}

func (s *DocumentService) save(id string) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	content := p.content
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.Update(ctx, id, entities.DocumentUpdate{Content: &content}); err != nil {
		s.logger.Error("autosave failed", "id", id, "error", err)
		return
	}
	s.logger.Debug("autosaved", "id", id, "bytes", len(content))
}

// Flush writes every pending autosave now
func (s *DocumentService) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*pendingSave)
	s.mu.Unlock()

	var errs []error
	for id, p := range pending {
		p.timer.Stop()
		content := p.content
		if _, err := s.Update(ctx, id, entities.DocumentUpdate{Content: &content}); err != nil {
			errs = append(errs, fmt.Errorf("saving %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending autosaves and stops accepting new ones
func (s *DocumentService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}

// Pending reports how many autosaves are waiting
func (s *DocumentService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

type MockFileWatcher struct {
	mock.Mock
}

func (m *MockFileWatcher) Watch(ctx context.Context, path string) (<-chan ports.FileChangeEvent, error) {
	args := m.Called(ctx, path)
	if ch := args.Get(0); ch != nil {
		return ch.(<-chan ports.FileChangeEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFileWatcher) Stop() error {
	args := m.Called()
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyClients(event ports.UpdateEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

// eventOfType matches an UpdateEvent by its type
func eventOfType(t string) interface{} {
	return mock.MatchedBy(func(e ports.UpdateEvent) bool { return e.Type == t })
}

type MockContentSink struct {
	mock.Mock
}

func (m *MockContentSink) OnContentChanged(text string) (ports.RenderPass, error) {
	args := m.Called(text)
	if p := args.Get(0); p != nil {
		return p.(ports.RenderPass), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockBlockExtractor struct {
	mock.Mock
}

func (m *MockBlockExtractor) Extract(markdown string) entities.ProcessedMarkdown {
	args := m.Called(markdown)
	return args.Get(0).(entities.ProcessedMarkdown)
}

type MockPreviewRenderer struct {
	mock.Mock
}

func (m *MockPreviewRenderer) Mount(html string) error {
	args := m.Called(html)
	return args.Error(0)
}

func (m *MockPreviewRenderer) Reconcile(blocks []entities.Block, theme entities.Theme) ports.RenderPass {
	args := m.Called(blocks, theme)
	return args.Get(0).(ports.RenderPass)
}

func (m *MockPreviewRenderer) Refresh(blocks []entities.Block, theme entities.Theme) ports.RenderPass {
	args := m.Called(blocks, theme)
	return args.Get(0).(ports.RenderPass)
}

func (m *MockPreviewRenderer) Snapshot() string {
	args := m.Called()
	return args.String(0)
}

type stubPass uint64

func (p stubPass) Token() uint64 { return uint64(p) }
func (p stubPass) Wait(context.Context) error { return nil }

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *entities.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*entities.Document, error) {
	args := m.Called(ctx, id)
	if d := args.Get(0); d != nil {
		// hand out a copy so callers cannot mutate the fixture
		doc := *d.(*entities.Document)
		return &doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentStore) List(ctx context.Context) ([]*entities.Document, error) {
	args := m.Called(ctx)
	if d := args.Get(0); d != nil {
		return d.([]*entities.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentStore) Update(ctx context.Context, doc *entities.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentStore) TouchRecent(ctx context.Context, file entities.RecentFile, limit int) error {
	args := m.Called(ctx, file, limit)
	return args.Error(0)
}

func (m *MockDocumentStore) Recent(ctx context.Context) ([]entities.RecentFile, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]entities.RecentFile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentStore) SetCurrent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentStore) Current(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingNotifier keeps every published event
type recordingNotifier struct {
	mu     sync.Mutex
	events []ports.UpdateEvent
}

func (r *recordingNotifier) NotifyClients(event ports.UpdateEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingNotifier) last() ports.UpdateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

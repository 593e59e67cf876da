package http

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/export"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
	"github.com/fredcamaral/mdlive/internal/domain/services"
)

type fakePass uint64

func (p fakePass) Token() uint64              { return uint64(p) }
func (p fakePass) Wait(context.Context) error { return nil }

// fakePreview records what the server asked of it
type fakePreview struct {
	mu       sync.Mutex
	content  string
	theme    entities.Theme
	blocks   []entities.Block
	title    string
	refreshs int
	err      error
}

func newFakePreview() *fakePreview {
	return &fakePreview{
		theme: entities.ThemeLight,
		title: "Doc",
		blocks: []entities.Block{
			{ID: "block-1", Language: entities.LanguageMermaid, Code: "graph TD\nA-->B", IsDiagram: true},
			{ID: "block-2", Language: "go", Code: "package main"},
		},
	}
}

func (f *fakePreview) State() services.PreviewState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return services.PreviewState{Title: f.title, HTML: "<p>tree</p>", Theme: f.theme, Blocks: f.blocks}
}

func (f *fakePreview) Content() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

func (f *fakePreview) Theme() entities.Theme {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.theme
}

func (f *fakePreview) Block(id string) (entities.Block, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.blocks {
		if b.ID == id {
			return b, true
		}
	}
	return entities.Block{}, false
}

func (f *fakePreview) OnContentChanged(text string) (ports.RenderPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.content = text
	return fakePass(11), nil
}

func (f *fakePreview) OnThemeChanged(theme entities.Theme) (ports.RenderPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.theme = theme
	return fakePass(12), nil
}

func (f *fakePreview) Refresh() (ports.RenderPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshs++
	return fakePass(13), nil
}

type MockInteractions struct {
	mock.Mock
}

func (m *MockInteractions) Wheel(blockID string, ev renderer.WheelEvent) (float64, bool, bool) {
	args := m.Called(blockID, ev)
	return args.Get(0).(float64), args.Bool(1), args.Bool(2)
}

func (m *MockInteractions) ResetZoom(blockID string) (float64, bool) {
	args := m.Called(blockID)
	return args.Get(0).(float64), args.Bool(1)
}

func (m *MockInteractions) Pan(blockID string, ev renderer.PanEvent) (float64, float64, bool) {
	args := m.Called(blockID, ev)
	return args.Get(0).(float64), args.Get(1).(float64), args.Bool(2)
}

func (m *MockInteractions) Download(blockID string) (entities.DownloadRequest, error) {
	args := m.Called(blockID)
	return args.Get(0).(entities.DownloadRequest), args.Error(1)
}

type MockDocuments struct {
	mock.Mock
}

func (m *MockDocuments) Create(ctx context.Context, title, content string) (*entities.Document, error) {
	args := m.Called(ctx, title, content)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *MockDocuments) Get(ctx context.Context, id string) (*entities.Document, error) {
	args := m.Called(ctx, id)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *MockDocuments) Load(ctx context.Context, id string) (*entities.Document, error) {
	args := m.Called(ctx, id)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *MockDocuments) Update(ctx context.Context, id string, upd entities.DocumentUpdate) (*entities.Document, error) {
	args := m.Called(ctx, id, upd)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *MockDocuments) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocuments) List(ctx context.Context) ([]*entities.Document, error) {
	args := m.Called(ctx)
	if d := args.Get(0); d != nil {
		return d.([]*entities.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocuments) Recent(ctx context.Context) ([]entities.RecentFile, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]entities.RecentFile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocuments) Current(ctx context.Context) (*entities.Document, error) {
	args := m.Called(ctx)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *MockDocuments) Autosave(id, content string) {
	m.Called(id, content)
}

func docOrNil(v interface{}) *entities.Document {
	if v == nil {
		return nil
	}
	return v.(*entities.Document)
}

// stubDownloader returns a fixed artifact and remembers its options
type stubDownloader struct {
	mu   sync.Mutex
	code string
	opts entities.RasterOptions
	err  error
}

func (d *stubDownloader) Download(_ context.Context, code string, opts entities.RasterOptions) (export.Artifact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.code, d.opts = code, opts
	if d.err != nil {
		return export.Artifact{}, d.err
	}
	return export.Artifact{Filename: "td.png", MimeType: opts.Format.MimeType(), Data: []byte("PNGDATA")}, nil
}

type stubExporter struct {
	req export.Request
	err error
}

func (e *stubExporter) Export(_ context.Context, req export.Request) (*export.Result, error) {
	e.req = req
	if e.err != nil {
		return nil, e.err
	}
	return &export.Result{
		Format:   req.Format,
		MimeType: "text/html; charset=utf-8",
		Data:     []byte("<html>doc</html>"),
		Warnings: []string{"diagram 2 kept as source"},
	}, nil
}

type testDeps struct {
	preview      *fakePreview
	interactions *MockInteractions
	documents    *MockDocuments
	downloader   *stubDownloader
	exporter     *stubExporter
}

func newTestServer(t interface{ Helper() }) (*Server, *testDeps) {
	t.Helper()
	pages, err := renderer.NewPageRenderer()
	if err != nil {
		panic(err)
	}
	d := &testDeps{
		preview:      newFakePreview(),
		interactions: &MockInteractions{},
		documents:    &MockDocuments{},
		downloader:   &stubDownloader{},
		exporter:     &stubExporter{},
	}
	s := NewServer(&entities.Config{}, Dependencies{
		Preview:      d.preview,
		Interactions: d.interactions,
		Documents:    d.documents,
		Downloader:   d.downloader,
		Exporter:     d.exporter,
		Pages:        pages,
	}, nil)
	return s, d
}

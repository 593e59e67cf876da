package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

func previewDoc() entities.ProcessedMarkdown {
	return entities.ProcessedMarkdown{
		Title: "Doc",
		HTML:  "<h1>Doc</h1>\n" + entities.PlaceholderHTML("block-1") + entities.PlaceholderHTML("block-2"),
		Blocks: []entities.Block{
			{ID: "block-1", Language: entities.LanguageMermaid, Code: "graph TD\nA-->B", IsDiagram: true},
			{ID: "block-2", Language: "go", Code: "package main"},
		},
	}
}

func TestNewPreviewService(t *testing.T) {
	tests := []struct {
		name  string
		theme entities.Theme
		want  entities.Theme
	}{
		{"dark", entities.ThemeDark, entities.ThemeDark},
		{"light", entities.ThemeLight, entities.ThemeLight},
		{"invalid falls back to light", entities.Theme("sepia"), entities.ThemeLight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPreviewService(&MockBlockExtractor{}, &MockPreviewRenderer{}, tt.theme, nil)
			assert.Equal(t, tt.want, s.Theme())
		})
	}
}

func TestPreviewService_OnContentChanged(t *testing.T) {
	t.Run("extracts mounts and reconciles", func(t *testing.T) {
		extractor := &MockBlockExtractor{}
		renderer := &MockPreviewRenderer{}
		notifier := &recordingNotifier{}
		doc := previewDoc()

		extractor.On("Extract", "# Doc").Return(doc)
		renderer.On("Mount", doc.HTML).Return(nil).Once()
		renderer.On("Reconcile", doc.Blocks, entities.ThemeDark).Return(stubPass(7)).Once()
		renderer.On("Snapshot").Return("<div>tree</div>")

		s := NewPreviewService(extractor, renderer, entities.ThemeDark, nil)
		s.SetNotifier(notifier)

		pass, err := s.OnContentChanged("# Doc")
		require.NoError(t, err)
		assert.Equal(t, uint64(7), pass.Token())
		assert.Equal(t, "# Doc", s.Content())

		block, ok := s.Block("block-2")
		require.True(t, ok)
		assert.Equal(t, "go", block.Language)

		require.Equal(t, []string{ports.EventTypePreview}, notifier.types())
		data := notifier.last().Data.(map[string]interface{})
		assert.Equal(t, "Doc", data["title"])
		assert.Equal(t, "<div>tree</div>", data["html"])

		extractor.AssertExpectations(t)
		renderer.AssertExpectations(t)
	})

	t.Run("mount failure", func(t *testing.T) {
		extractor := &MockBlockExtractor{}
		renderer := &MockPreviewRenderer{}
		extractor.On("Extract", "x").Return(entities.ProcessedMarkdown{HTML: "<p>x</p>"})
		renderer.On("Mount", "<p>x</p>").Return(assert.AnError)

		s := NewPreviewService(extractor, renderer, entities.ThemeLight, nil)
		_, err := s.OnContentChanged("x")
		assert.ErrorIs(t, err, assert.AnError)
		renderer.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
	})
}

func TestPreviewService_OnThemeChanged(t *testing.T) {
	setup := func() (*PreviewService, *MockPreviewRenderer, *MockBlockExtractor, *recordingNotifier) {
		extractor := &MockBlockExtractor{}
		renderer := &MockPreviewRenderer{}
		notifier := &recordingNotifier{}
		doc := previewDoc()
		extractor.On("Extract", "# Doc").Return(doc)
		renderer.On("Mount", doc.HTML).Return(nil)
		renderer.On("Reconcile", doc.Blocks, entities.ThemeLight).Return(stubPass(1))
		renderer.On("Snapshot").Return("")

		s := NewPreviewService(extractor, renderer, entities.ThemeLight, nil)
		s.SetNotifier(notifier)
		return s, renderer, extractor, notifier
	}

	t.Run("reconciles the same blocks without extracting", func(t *testing.T) {
		s, renderer, extractor, notifier := setup()
		_, err := s.OnContentChanged("# Doc")
		require.NoError(t, err)

		renderer.On("Reconcile", previewDoc().Blocks, entities.ThemeDark).Return(stubPass(2)).Once()

		pass, err := s.OnThemeChanged(entities.ThemeDark)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), pass.Token())
		assert.Equal(t, entities.ThemeDark, s.Theme())

		extractor.AssertNumberOfCalls(t, "Extract", 1)
		renderer.AssertNumberOfCalls(t, "Mount", 1)

		assert.Equal(t, []string{ports.EventTypePreview, ports.EventTypeTheme}, notifier.types())
		data := notifier.last().Data.(map[string]interface{})
		assert.Equal(t, "dark", data["theme"])
		assert.Equal(t, "#1a1a1a", data["background"])
	})

	t.Run("same theme publishes nothing", func(t *testing.T) {
		s, _, _, notifier := setup()
		_, err := s.OnContentChanged("# Doc")
		require.NoError(t, err)

		_, err = s.OnThemeChanged(entities.ThemeLight)
		require.NoError(t, err)
		assert.Equal(t, []string{ports.EventTypePreview}, notifier.types())
	})

	t.Run("invalid theme", func(t *testing.T) {
		s, _, _, _ := setup()
		_, err := s.OnThemeChanged(entities.Theme("neon"))
		assert.Error(t, err)
		assert.Equal(t, entities.ThemeLight, s.Theme())
	})
}

func TestPreviewService_Refresh(t *testing.T) {
	extractor := &MockBlockExtractor{}
	renderer := &MockPreviewRenderer{}
	doc := previewDoc()

	extractor.On("Extract", "# Doc").Return(doc)
	renderer.On("Mount", doc.HTML).Return(nil)
	renderer.On("Reconcile", doc.Blocks, entities.ThemeLight).Return(stubPass(1)).Once()
	renderer.On("Refresh", doc.Blocks, entities.ThemeLight).Return(stubPass(2)).Once()
	renderer.On("Snapshot").Return("")

	s := NewPreviewService(extractor, renderer, entities.ThemeLight, nil)
	_, err := s.OnContentChanged("# Doc")
	require.NoError(t, err)

	pass, err := s.Refresh()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), pass.Token())

	// a refresh is a new extraction pass over the same text
	extractor.AssertNumberOfCalls(t, "Extract", 2)
	renderer.AssertNumberOfCalls(t, "Mount", 2)
	renderer.AssertExpectations(t)
}

func TestPreviewService_State(t *testing.T) {
	extractor := &MockBlockExtractor{}
	renderer := &MockPreviewRenderer{}
	doc := previewDoc()
	extractor.On("Extract", "# Doc").Return(doc)
	renderer.On("Mount", doc.HTML).Return(nil)
	renderer.On("Reconcile", doc.Blocks, entities.ThemeDark).Return(stubPass(1))
	renderer.On("Snapshot").Return("<p>snap</p>")

	s := NewPreviewService(extractor, renderer, entities.ThemeDark, nil)
	_, err := s.OnContentChanged("# Doc")
	require.NoError(t, err)

	state := s.State()
	assert.Equal(t, "Doc", state.Title)
	assert.Equal(t, "<p>snap</p>", state.HTML)
	assert.Equal(t, entities.ThemeDark, state.Theme)
	assert.Len(t, state.Blocks, 2)
}

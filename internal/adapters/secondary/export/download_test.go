package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

func TestDefaultFilename(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	tests := []struct {
		name string
		code string
		want string
	}{
		{"title line", "title Order Flow!\nflowchart TD\nA-->B", "order-flow"},
		{"accented title", "title Café Déjà vu", "cafe-deja-vu"},
		{"flowchart direction", "flowchart LR\nA-->B", "lr"},
		{"graph direction", "graph TD\nA-->B", "td"},
		{"title not on first line", "flowchart TD\ntitle Nope", "td"},
		{"timestamp fallback", "sequenceDiagram\nA->>B: hi", "mermaid-diagram-1700000000123"},
		{"empty title falls through", "title !!!\nsequenceDiagram", "mermaid-diagram-1700000000123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultFilename(tt.code))
		})
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("  Hello   World "))
	assert.Equal(t, "a-b-c", Slugify("a-b c"))
	assert.Equal(t, "uber", Slugify("Über"))
}

type failingEngine struct{}

func (failingEngine) Render(context.Context, string, string, entities.Theme) (string, error) {
	return "", errors.New("Parse error on line 2")
}

func TestDownloader_Download(t *testing.T) {
	t.Run("png with preset", func(t *testing.T) {
		engine := &stubEngine{}
		d := NewDownloader(engine, nil, nil)
		preset, ok := entities.FindPreset("web")
		require.True(t, ok)

		art, err := d.Download(context.Background(), "flowchart TD\n<div>A-->B</div>", preset.Apply(entities.RasterOptions{Theme: entities.ThemeDark}))
		require.NoError(t, err)

		assert.Equal(t, "td.png", art.Filename)
		assert.Equal(t, "image/png", art.MimeType)
		img, _ := decodeImage(t, art.Data)
		assert.Equal(t, 800, img.Bounds().Dx())
		assert.Equal(t, 600, img.Bounds().Dy())
		require.Len(t, engine.sources, 1)
		assert.Equal(t, "flowchart TD\nA-->B", engine.sources[0])
		assert.Equal(t, entities.ThemeDark, engine.themes[0])
	})

	t.Run("svg", func(t *testing.T) {
		d := NewDownloader(&stubEngine{}, nil, nil)
		art, err := d.Download(context.Background(), "graph LR\nA-->B", entities.RasterOptions{Format: entities.FormatSVG})
		require.NoError(t, err)
		assert.Equal(t, "lr.svg", art.Filename)
		assert.Equal(t, "image/svg+xml", art.MimeType)
		assert.Contains(t, string(art.Data), "<svg")
	})

	t.Run("engine failure is a typed error", func(t *testing.T) {
		d := NewDownloader(failingEngine{}, nil, nil)
		_, err := d.Download(context.Background(), "graph TD\nA--", entities.RasterOptions{})

		var exportErr *ExportError
		require.ErrorAs(t, err, &exportErr)
		assert.Equal(t, ErrorTypeDiagram, exportErr.Type)
		assert.Contains(t, err.Error(), "Parse error")
	})

	t.Run("empty source", func(t *testing.T) {
		d := NewDownloader(&stubEngine{}, nil, nil)
		_, err := d.Download(context.Background(), " <div></div> ", entities.RasterOptions{})

		var exportErr *ExportError
		require.ErrorAs(t, err, &exportErr)
		assert.Equal(t, ErrorTypeValidation, exportErr.Type)
	})
}

func TestPresets(t *testing.T) {
	names := make([]string, 0, len(entities.DownloadPresets))
	for _, p := range entities.DownloadPresets {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"web", "hd", "print", "mobile", "social"}, names)

	p, ok := entities.FindPreset("HD")
	require.True(t, ok)
	assert.Equal(t, 1920, p.Width)
	assert.Equal(t, 1080, p.Height)
	assert.InDelta(t, 0.9, p.Quality, 1e-9)

	_, ok = entities.FindPreset("poster")
	assert.False(t, ok)
}

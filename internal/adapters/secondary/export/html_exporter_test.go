package export

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

func TestHTMLExporter(t *testing.T) {
	hl := entities.HighlightConfig{LightStyle: "github", DarkStyle: "github-dark"}
	diagram := Diagram{Index: 1, DataURL: "data:image/png;base64,AAAA"}
	content := "# Title\n\n" + Placeholder(1) + "\n\n```go\nx := 1\n```\n\n<div class=\"note\" onclick=\"alert(1)\">raw</div>\n"

	t.Run("light theme passes raw html through", func(t *testing.T) {
		e := NewHTMLExporter(hl, false)
		out, err := e.Export(context.Background(), Request{Title: "T", Theme: entities.ThemeLight}, content, []Diagram{diagram})
		require.NoError(t, err)

		html := string(out)
		assert.Contains(t, html, "background: #ffffff")
		assert.Contains(t, html, "color: #000000")
		assert.Contains(t, html, `<img src="data:image/png;base64,AAAA" alt="Mermaid Diagram 1"`)
		assert.Contains(t, html, `onclick="alert(1)"`)
		assert.Contains(t, html, "<pre")
		assert.Regexp(t, `<pre[^>]*style="[^"]*background-color`, html)
	})

	t.Run("dark palette", func(t *testing.T) {
		e := NewHTMLExporter(hl, false)
		out, err := e.Export(context.Background(), Request{Title: "T", Theme: entities.ThemeDark}, content, nil)
		require.NoError(t, err)
		html := string(out)
		assert.Contains(t, html, "background: #2d2d2d")
		assert.Contains(t, html, "mermaid-diagram-1.png")
	})

	t.Run("sanitizer keeps data images and drops handlers", func(t *testing.T) {
		e := NewHTMLExporter(hl, true)
		out, err := e.Export(context.Background(), Request{Title: "T", Theme: entities.ThemeLight}, content, []Diagram{diagram})
		require.NoError(t, err)
		html := string(out)
		assert.Contains(t, html, `src="data:image/png;base64,AAAA"`)
		assert.NotContains(t, html, "onclick")
		assert.Contains(t, html, "raw")
	})

	t.Run("title is escaped", func(t *testing.T) {
		e := NewHTMLExporter(hl, false)
		out, err := e.Export(context.Background(), Request{Title: "<b>x</b>", Theme: entities.ThemeLight}, "hi", nil)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(out), "<title>&lt;b&gt;x&lt;/b&gt;</title>"))
	})
}

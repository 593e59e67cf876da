package renderer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/atom"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "graph TD\r\nA-->B", "graph TD\nA-->B"},
		{"lone cr", "graph TD\rA-->B", "graph TD\nA-->B"},
		{"div tags", "<div class=\"x\">graph TD</div>", "graph TD"},
		{"span tags", "graph TD\n<span>A</span>-->B", "graph TD\nA-->B"},
		{"untouched", "flowchart LR\nA-->B", "flowchart LR\nA-->B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preprocess(tt.in))
		})
	}
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Parse error on line 3", DiagnosisSyntax},
		{"Lexical error on line 1. Unrecognized text.", DiagnosisSyntax},
		{"Expecting 'SEMI', got 'EOF'", DiagnosisSyntax},
		{"SYNTAX ERROR in text", DiagnosisSyntax},
		{"No diagram type detected matching given configuration for text: foo", DiagnosisInvalidType},
		{"UnknownDiagramError: bar", DiagnosisInvalidType},
		{"", DiagnosisUnknown},
		{"Unknown error", DiagnosisUnknown},
		{"mmdc exited with status 1\nstack trace here", "mmdc exited with status 1"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Diagnose(tt.raw))
		})
	}
}

func TestDiagramRenderer_RenderOne(t *testing.T) {
	ctx := context.Background()
	block := entities.Block{ID: "block-1", Language: "mermaid", Code: "flowchart TD\nA-->B", IsDiagram: true}

	t.Run("success leaves the download payload to the commit", func(t *testing.T) {
		engine := &stubEngine{}
		downloads := NewDownloadRegistry(nil)
		r := NewDiagramRenderer(engine, downloads, nil)

		outcome := r.RenderOne(ctx, block, entities.ThemeDark)
		success, ok := outcome.(entities.DiagramSuccess)
		require.True(t, ok)
		assert.Contains(t, success.Markup, "<svg")
		assert.Equal(t, entities.ThemeDark, engine.call(0).Theme)

		_, ok = downloads.Get("block-1")
		assert.False(t, ok)

		r.recordDownload(block)
		req, ok := downloads.Get("block-1")
		require.True(t, ok)
		assert.Equal(t, block.Code, req.Code)
		assert.Equal(t, "Diagram block-1", req.Title)

		r.forgetDownload("block-1")
		_, ok = downloads.Get("block-1")
		assert.False(t, ok)
	})

	t.Run("ids are unique per call", func(t *testing.T) {
		engine := &stubEngine{}
		r := NewDiagramRenderer(engine, nil, nil)

		r.RenderOne(ctx, block, entities.ThemeLight)
		r.RenderOne(ctx, block, entities.ThemeLight)

		first, second := engine.call(0).ID, engine.call(1).ID
		assert.NotEqual(t, first, second)
		assert.True(t, strings.HasPrefix(first, "mermaid-block-1-"))
	})

	t.Run("engine sees preprocessed source", func(t *testing.T) {
		engine := &stubEngine{}
		r := NewDiagramRenderer(engine, nil, nil)

		r.RenderOne(ctx, entities.Block{ID: "block-2", Code: "graph TD\r\nA-->B"}, entities.ThemeLight)
		assert.Equal(t, "graph TD\nA-->B", engine.call(0).Source)
	})

	t.Run("failure carries diagnosis, source and raw error", func(t *testing.T) {
		r := NewDiagramRenderer(&stubEngine{}, nil, nil)
		bad := entities.Block{ID: "block-3", Code: "flowchart TD\nFAIL -->", IsDiagram: true}

		outcome := r.RenderOne(ctx, bad, entities.ThemeLight)
		failure, ok := outcome.(entities.DiagramFailure)
		require.True(t, ok)
		assert.Equal(t, DiagnosisSyntax, failure.Diagnosis)
		assert.Equal(t, bad.Code, failure.RawSource)
		assert.Contains(t, failure.RawError, "Parse error on line 2")
	})

	t.Run("engine panic becomes a failure", func(t *testing.T) {
		r := NewDiagramRenderer(panicEngine{}, nil, nil)

		var outcome entities.DiagramOutcome
		assert.NotPanics(t, func() { outcome = r.RenderOne(ctx, block, entities.ThemeLight) })
		failure, ok := outcome.(entities.DiagramFailure)
		require.True(t, ok)
		assert.Contains(t, failure.RawError, "engine crashed")
	})
}

func TestDiagramRenderer_Nodes(t *testing.T) {
	r := NewDiagramRenderer(nil, nil, nil)
	block := entities.Block{ID: "block-7", Code: "flowchart TD\nA-->B"}

	t.Run("success", func(t *testing.T) {
		root, wrapper, vector := r.Nodes(entities.DiagramSuccess{Markup: `<svg width="10" height="10"></svg>`}, block)
		require.NotNil(t, wrapper)
		require.NotNil(t, vector)
		assert.Same(t, root, wrapper)

		holder := element(atom.Div)
		holder.AppendChild(root)
		markup := renderChildren(holder)
		assert.Contains(t, markup, `class="mermaid-container"`)
		assert.Contains(t, markup, `class="mermaid-svg"`)
		assert.Contains(t, markup, "<svg")
		assert.Contains(t, markup, `title="Download diagram"`)
		assert.Contains(t, markup, `data-block-id="block-7"`)
	})

	t.Run("failure panel escapes content", func(t *testing.T) {
		failure := entities.DiagramFailure{
			Diagnosis: DiagnosisSyntax,
			RawSource: "flowchart TD\n<script>alert(1)</script>",
			RawError:  "Parse error <b>here</b>",
		}
		root, wrapper, vector := r.Nodes(failure, block)
		assert.Nil(t, wrapper)
		assert.Nil(t, vector)

		holder := element(atom.Div)
		holder.AppendChild(root)
		markup := renderChildren(holder)
		assert.Contains(t, markup, `class="mermaid-error"`)
		assert.Contains(t, markup, "Mermaid Diagram Error")
		assert.Contains(t, markup, DiagnosisSyntax)
		assert.Contains(t, markup, "Show diagram code")
		assert.Contains(t, markup, "Show full error")
		assert.Contains(t, markup, "&lt;script&gt;")
		assert.NotContains(t, markup, "<script>")
		assert.NotContains(t, markup, "<b>here</b>")
	})
}

package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

type failingConverter struct{}

func (failingConverter) ToHTML([]byte) (string, error) {
	return "", errors.New("boom")
}

type panickingConverter struct{}

func (panickingConverter) ToHTML([]byte) (string, error) {
	panic("converter exploded")
}

func newTestExtractor() *Extractor {
	return NewExtractor(nil, nil, nil)
}

func TestExtractor_SingleDiagram(t *testing.T) {
	result := newTestExtractor().Extract("```mermaid\nflowchart TD\nA-->B\n```")

	require.Len(t, result.Blocks, 1)
	block := result.Blocks[0]
	assert.Equal(t, "block-1", block.ID)
	assert.True(t, block.IsDiagram)
	assert.Equal(t, "mermaid", block.Language)
	assert.Equal(t, "flowchart TD\nA-->B", block.Code)
	assert.Contains(t, result.HTML, entities.PlaceholderHTML("block-1"))
}

func TestExtractor_LeakedMarkupDowngrades(t *testing.T) {
	src := "```mermaid\n<div>leaked</div>\n```"
	result := newTestExtractor().Extract(src)

	require.Len(t, result.Blocks, 1)
	block := result.Blocks[0]
	assert.False(t, block.IsDiagram)
	assert.Equal(t, "text", block.Language)
	assert.Equal(t, src, block.Code)
	assert.True(t, strings.HasPrefix(block.Code, "```mermaid"))
	assert.True(t, strings.HasSuffix(block.Code, "```"))
	assert.NotContains(t, result.HTML, "leaked")
}

func TestExtractor_SequentialDiagrams(t *testing.T) {
	src := "# Doc\n\n```mermaid\ngraph LR\nA-->B\n```\n\ntext between\n\n```mermaid\nsequenceDiagram\nA->>B: hi\n```\n"
	e := newTestExtractor()

	text, blocks := e.substitute(src)
	require.Len(t, blocks, 2)
	assert.Equal(t, "block-1", blocks[0].ID)
	assert.Equal(t, "block-2", blocks[1].ID)
	assert.Contains(t, blocks[0].Code, "graph LR")
	assert.Contains(t, blocks[1].Code, "sequenceDiagram")

	assert.Contains(t, text, entities.PlaceholderHTML("block-1"))
	assert.Contains(t, text, entities.PlaceholderHTML("block-2"))
	assert.Less(t, strings.Index(text, "block-1"), strings.Index(text, "block-2"))
	assert.NotContains(t, text, "A-->B")
	assert.NotContains(t, text, "A->>B")

	result := e.Extract(src)
	assert.NotContains(t, result.HTML, "A--&gt;B")
	assert.NotContains(t, result.HTML, "sequenceDiagram")
	assert.Contains(t, result.HTML, "text between")
}

func TestExtractor_MixedBlocks(t *testing.T) {
	src := strings.Join([]string{
		"```go",
		"package main",
		"```",
		"",
		"```mermaid",
		"flowchart TD",
		"A-->B",
		"```",
		"",
		"```",
		"plain",
		"```",
	}, "\n")

	result := newTestExtractor().Extract(src)
	require.Len(t, result.Blocks, 3)

	// diagram fences are numbered first
	assert.Equal(t, entities.Block{ID: "block-1", Language: "mermaid", Code: "flowchart TD\nA-->B", IsDiagram: true}, result.Blocks[0])
	assert.Equal(t, entities.Block{ID: "block-2", Language: "go", Code: "package main"}, result.Blocks[1])
	assert.Equal(t, entities.Block{ID: "block-3", Language: "text", Code: "plain"}, result.Blocks[2])
}

func TestExtractor_DowngradedFenceNotRematched(t *testing.T) {
	src := "```mermaid\nA-->B\n```\n\n```python\nprint(1)\n```"
	result := newTestExtractor().Extract(src)

	require.Len(t, result.Blocks, 2)
	assert.Equal(t, "text", result.Blocks[0].Language)
	assert.Equal(t, "python", result.Blocks[1].Language)
	assert.Equal(t, "block-2", result.Blocks[1].ID)
}

func TestExtractor_MermaidPrefixedFenceLeftAlone(t *testing.T) {
	src := "```mermaidjs\nA-->B\n```\n\n```go\npackage main\n```"
	result := newTestExtractor().Extract(src)

	require.Len(t, result.Blocks, 1)
	assert.Equal(t, entities.Block{ID: "block-1", Language: "go", Code: "package main"}, result.Blocks[0])
	assert.Contains(t, result.HTML, "A--")
}

func TestExtractor_NormalizesFences(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"quadruple opening", "````mermaid\nflowchart TD\nA-->B\n```"},
		{"blank line after opening", "```mermaid\n\nflowchart TD\nA-->B\n```"},
		{"blank line before closing", "```mermaid\nflowchart TD\nA-->B\n\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestExtractor().Extract(tt.src)
			require.Len(t, result.Blocks, 1)
			assert.True(t, result.Blocks[0].IsDiagram)
			assert.Equal(t, "flowchart TD\nA-->B", result.Blocks[0].Code)
		})
	}
}

func TestExtractor_Deterministic(t *testing.T) {
	src := "```mermaid\npie\n\"a\" : 1\n```\n\n```js\nx()\n```\n\n```mermaid\n<span>x</span>\n```"
	e := newTestExtractor()

	first := e.Extract(src)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.Blocks, e.Extract(src).Blocks)
	}
}

func TestExtractor_Degrades(t *testing.T) {
	src := "```mermaid\nflowchart TD\nA-->B\n```"

	t.Run("conversion error", func(t *testing.T) {
		result := NewExtractor(failingConverter{}, nil, nil).Extract(src)
		assert.Equal(t, ErrorHTML, result.HTML)
		assert.Empty(t, result.Blocks)
	})

	t.Run("conversion panic", func(t *testing.T) {
		var result entities.ProcessedMarkdown
		assert.NotPanics(t, func() {
			result = NewExtractor(panickingConverter{}, nil, nil).Extract(src)
		})
		assert.Equal(t, ErrorHTML, result.HTML)
		assert.Empty(t, result.Blocks)
	})
}

func TestExtractor_RawHTMLPassthrough(t *testing.T) {
	result := newTestExtractor().Extract("<section id=\"raw\">kept</section>\n\n**bold**")
	assert.Contains(t, result.HTML, `<section id="raw">kept</section>`)
	assert.Contains(t, result.HTML, "<strong>bold</strong>")
}

func TestExtractor_Title(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"frontmatter", "---\ntitle: Design Notes\n---\n# Heading\n", "Design Notes"},
		{"first heading", "intro\n\n# Heading One\n\n# Second", "Heading One"},
		{"none", "just text", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTestExtractor().Extract(tt.src).Title)
		})
	}

	t.Run("frontmatter is not rendered", func(t *testing.T) {
		result := newTestExtractor().Extract("---\ntitle: Hidden\n---\nbody")
		assert.NotContains(t, result.HTML, "Hidden")
		assert.Contains(t, result.HTML, "body")
	})
}

func TestExtractFrontmatter(t *testing.T) {
	t.Run("malformed yaml keeps content", func(t *testing.T) {
		src := "---\ntitle: [oops\n---\nbody"
		fm, rest := extractFrontmatter(src)
		assert.Nil(t, fm)
		assert.Equal(t, src, rest)
	})

	t.Run("unterminated block", func(t *testing.T) {
		fm, rest := extractFrontmatter("---\ntitle: x\nbody")
		assert.Nil(t, fm)
		assert.Equal(t, "---\ntitle: x\nbody", rest)
	})

	t.Run("empty block", func(t *testing.T) {
		fm, rest := extractFrontmatter("---\n---\nbody")
		assert.NotNil(t, fm)
		assert.Equal(t, "body", rest)
	})
}

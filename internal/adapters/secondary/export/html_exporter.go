package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// HTMLExporter produces a single self-contained HTML file. Diagrams are
// inlined as png data URLs.
type HTMLExporter struct {
	highlight entities.HighlightConfig
	sanitizer *bluemonday.Policy
	template  *template.Template

	mu       sync.Mutex
	markdown map[entities.Theme]goldmark.Markdown
}

// NewHTMLExporter creates an exporter. With sanitize set the rendered
// body goes through a UGC policy that still allows data URL images.
func NewHTMLExporter(highlight entities.HighlightConfig, sanitize bool) *HTMLExporter {
	tmpl := template.Must(template.New("export").Funcs(template.FuncMap{
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s) // #nosec G203 - body is rendered markdown
		},
		"safeCSS": func(s string) template.CSS {
			return template.CSS(s) // #nosec G203 - fixed palette values
		},
	}).Parse(exportTemplate))

	e := &HTMLExporter{
		highlight: highlight,
		template:  tmpl,
		markdown:  make(map[entities.Theme]goldmark.Markdown),
	}
	if sanitize {
		p := bluemonday.UGCPolicy()
		p.AllowDataURIImages()
		p.AllowAttrs("style").OnElements("img", "span", "pre", "code")
		p.AllowAttrs("class").Globally()
		e.sanitizer = p
	}
	return e
}

// MimeType implements Exporter
func (e *HTMLExporter) MimeType() string {
	return "text/html; charset=utf-8"
}

// Export implements Exporter
func (e *HTMLExporter) Export(ctx context.Context, req Request, content string, diagrams []Diagram) ([]byte, error) {
	for _, d := range diagrams {
		content = strings.Replace(content, Placeholder(d.Index), imageTag(d), 1)
	}

	var body bytes.Buffer
	if err := e.converter(req.Theme).Convert([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rendered := body.String()
	if e.sanitizer != nil {
		rendered = e.sanitizer.Sanitize(rendered)
	}

	var out bytes.Buffer
	if err := e.template.Execute(&out, newPalette(req, rendered)); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return out.Bytes(), nil
}

func (e *HTMLExporter) converter(theme entities.Theme) goldmark.Markdown {
	e.mu.Lock()
	defer e.mu.Unlock()

	if md, ok := e.markdown[theme]; ok {
		return md
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(e.highlight.StyleFor(theme)),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(e.highlight.LineNumbers),
					chromahtml.TabWidth(4),
				),
			),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	e.markdown[theme] = md
	return md
}

func imageTag(d Diagram) string {
	return fmt.Sprintf(`<img src="%s" alt="Mermaid Diagram %d" style="max-width: 100%%; height: auto; display: block; margin: 1rem auto;" />`,
		d.DataURL, d.Index)
}

type palette struct {
	Title      string
	Body       string
	Background string
	Foreground string
	CodeBG     string
	Border     string
	Muted      string
	HeaderBG   string
}

func newPalette(req Request, body string) palette {
	p := palette{
		Title:      req.Title,
		Body:       body,
		Background: req.Theme.Background(),
		Foreground: req.Theme.Foreground(),
		CodeBG:     "#f5f5f5",
		Border:     "#ddd",
		Muted:      "#666",
		HeaderBG:   "#f5f5f5",
	}
	if req.Theme.IsDark() {
		p.CodeBG = "#2d2d2d"
		p.Border = "#555"
		p.Muted = "#ccc"
		p.HeaderBG = "#333"
	}
	return p
}

const exportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 2rem; background: {{safeCSS .Background}}; color: {{safeCSS .Foreground}}; }
    h1,h2,h3,h4,h5,h6 { margin-top: 2rem; margin-bottom: 1rem; }
    code { background: {{safeCSS .CodeBG}}; padding: 0.2rem 0.4rem; border-radius: 4px; font-family: 'Monaco','Menlo',monospace; }
    pre { background: {{safeCSS .CodeBG}}; padding: 1rem; border-radius: 8px; overflow-x: auto; }
    pre code { padding: 0; background: none; }
    blockquote { border-left: 4px solid {{safeCSS .Border}}; margin: 1rem 0; padding-left: 1rem; color: {{safeCSS .Muted}}; }
    table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
    th,td { border: 1px solid {{safeCSS .Border}}; padding: 0.5rem; text-align: left; }
    th { background: {{safeCSS .HeaderBG}}; }
    img { max-width: 100%; height: auto; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
  </style>
</head>
<body>
{{safeHTML .Body}}
</body>
</html>
`

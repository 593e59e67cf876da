package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// GoldmarkConverter implements ports.MarkdownConverter using Goldmark.
// Raw HTML is rendered as-is; placeholders depend on it.
type GoldmarkConverter struct {
	md goldmark.Markdown
}

// NewGoldmarkConverter creates a GFM converter with raw HTML passthrough
func NewGoldmarkConverter() *GoldmarkConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM, // tables, strikethrough, task lists, autolinks
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	return &GoldmarkConverter{md: md}
}

// ToHTML converts markdown to HTML
func (c *GoldmarkConverter) ToHTML(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(src, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ ports.MarkdownConverter = (*GoldmarkConverter)(nil)

var headingRe = regexp.MustCompile(`(?m)^#\s+(.+?)\s*#*\s*$`)

// extractFrontmatter splits a leading YAML block from the document.
// Malformed YAML leaves the content untouched.
func extractFrontmatter(content string) (map[string]interface{}, string) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return nil, content
	}

	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, content
	}

	raw := strings.Join(lines[1:end], "\n")
	frontmatter := make(map[string]interface{})
	if strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &frontmatter); err != nil {
			return nil, content
		}
	}

	return frontmatter, strings.Join(lines[end+1:], "\n")
}

// documentTitle prefers the frontmatter title, then the first h1
func documentTitle(frontmatter map[string]interface{}, body string) string {
	if title, ok := frontmatter["title"].(string); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if m := headingRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

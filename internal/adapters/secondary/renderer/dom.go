package renderer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Slot state attributes
const (
	attrRenderToken = "data-render-token"
	attrCommitToken = "data-commit-token"
	attrZoomScale   = "data-zoom-scale"
	attrContentHash = "data-content-hash"
	attrTheme       = "data-theme"
	attrLanguage    = "data-language"
	attrScrollLeft  = "data-scroll-left"
	attrScrollTop   = "data-scroll-top"
)

var (
	slotSelector      = cascadia.MustCompile("div.code-block-placeholder[data-block-id]")
	containerSelector = cascadia.MustCompile("div.mermaid-container")
	errorSelector     = cascadia.MustCompile("div.mermaid-error")
	vectorSelector    = cascadia.MustCompile("div.mermaid-svg")
	renderedSelector  = cascadia.MustCompile("div.mermaid-container, div.mermaid-error")
)

func compileSelector(sel string) (cascadia.Selector, error) {
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compiling selector %q: %w", sel, err)
	}
	return s, nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrOr(n *html.Node, key, def string) string {
	if v, ok := getAttr(n, key); ok {
		return v
	}
	return def
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func detachNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func appendAll(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		parent.AppendChild(c)
	}
	return parent
}

// parseFragment parses markup in the context of a div
func parseFragment(markup string) ([]*html.Node, error) {
	ctx := element(atom.Div)
	return html.ParseFragment(strings.NewReader(markup), ctx)
}

// renderChildren serializes the children of n
func renderChildren(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

func hasClass(n *html.Node, class string) bool {
	v, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == class {
			return true
		}
	}
	return false
}

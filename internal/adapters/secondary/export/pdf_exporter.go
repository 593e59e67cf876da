package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

const (
	pdfMargin    = 20.0
	pxToMM       = 0.264583
	bodyFontSize = 11.0
	codeFontSize = 9.0
)

var headingSizes = map[atom.Atom]float64{
	atom.H1: 20, atom.H2: 16, atom.H3: 14, atom.H4: 12, atom.H5: 11, atom.H6: 11,
}

// PDFExporter lays rendered markdown out on A4 pages with gofpdf.
// Diagrams are embedded as png images.
type PDFExporter struct {
	markdown goldmark.Markdown
}

// NewPDFExporter creates a PDF exporter
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// MimeType implements Exporter
func (e *PDFExporter) MimeType() string {
	return "application/pdf"
}

// Export implements Exporter
func (e *PDFExporter) Export(ctx context.Context, req Request, content string, diagrams []Diagram) ([]byte, error) {
	var body bytes.Buffer
	if err := e.markdown.Convert([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	doc, err := html.Parse(&body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	w := newPDFWriter(req, diagrams)
	w.walk(doc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.output()
}

type pdfWriter struct {
	pdf      *gofpdf.Fpdf
	tr       func(string) string
	theme    entities.Theme
	diagrams map[string]Diagram
}

func newPDFWriter(req Request, diagrams []Diagram) *pdfWriter {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(req.Title, true)
	pdf.SetCreator("mdlive", true)

	w := &pdfWriter{
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		theme:    req.Theme,
		diagrams: make(map[string]Diagram, len(diagrams)),
	}
	for _, d := range diagrams {
		w.diagrams[placeholderSrc(d.Index)] = d
	}

	if req.Theme.IsDark() {
		pdf.SetHeaderFuncMode(func() {
			pageW, pageH := pdf.GetPageSize()
			r, g, b := hexRGB(req.Theme.Background())
			pdf.SetFillColor(r, g, b)
			pdf.Rect(0, 0, pageW, pageH, "F")
			pdf.SetXY(pdfMargin, pdfMargin)
		}, false)
	}
	pdf.AddPage()
	w.textColor()
	return w
}

func (w *pdfWriter) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) textColor() {
	r, g, b := hexRGB(w.theme.Foreground())
	w.pdf.SetTextColor(r, g, b)
}

func (w *pdfWriter) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			w.heading(n)
			return
		case atom.P:
			w.paragraph(n, "")
			return
		case atom.Li:
			w.paragraph(n, "- ")
			return
		case atom.Pre:
			w.code(textContent(n, true))
			return
		case atom.Blockquote:
			w.pdf.SetFont("Helvetica", "I", bodyFontSize)
			w.block(collapse(textContent(n, false)), "")
			return
		case atom.Tr:
			w.tableRow(n)
			return
		case atom.Img:
			w.image(n)
			return
		case atom.Hr:
			y := w.pdf.GetY() + 2
			pageW, _ := w.pdf.GetPageSize()
			w.pdf.Line(pdfMargin, y, pageW-pdfMargin, y)
			w.pdf.SetY(y + 4)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *pdfWriter) heading(n *html.Node) {
	w.pdf.SetFont("Helvetica", "B", headingSizes[n.DataAtom])
	w.pdf.Ln(2)
	w.pdf.MultiCell(0, headingSizes[n.DataAtom]*0.5, w.tr(collapse(textContent(n, false))), "", "L", false)
	w.pdf.Ln(2)
}

// paragraph writes the text of n, then any diagram images it holds.
func (w *pdfWriter) paragraph(n *html.Node, prefix string) {
	w.pdf.SetFont("Helvetica", "", bodyFontSize)
	w.block(collapse(textContent(n, false)), prefix)

	var imgs func(*html.Node)
	imgs = func(c *html.Node) {
		if c.Type == html.ElementNode && c.DataAtom == atom.Img {
			w.image(c)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			imgs(gc)
		}
	}
	imgs(n)
}

func (w *pdfWriter) block(text, prefix string) {
	if text == "" {
		return
	}
	w.pdf.MultiCell(0, 5.5, w.tr(prefix+text), "", "L", false)
	w.pdf.Ln(2)
}

func (w *pdfWriter) code(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	r, g, b := hexRGB("#f5f5f5")
	if w.theme.IsDark() {
		r, g, b = hexRGB("#2d2d2d")
	}
	w.pdf.SetFillColor(r, g, b)
	w.pdf.SetFont("Courier", "", codeFontSize)
	w.pdf.MultiCell(0, 4.5, w.tr(strings.ReplaceAll(text, "\t", "    ")), "", "L", true)
	w.pdf.Ln(3)
}

func (w *pdfWriter) tableRow(n *html.Node) {
	var cells []string
	header := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom == atom.Th {
			header = true
		}
		cells = append(cells, collapse(textContent(c, false)))
	}
	style := ""
	if header {
		style = "B"
	}
	w.pdf.SetFont("Helvetica", style, bodyFontSize-1)
	w.block(strings.Join(cells, " | "), "")
}

// image embeds a converted diagram; other images are skipped
func (w *pdfWriter) image(n *html.Node) {
	src := attr(n, "src")
	d, ok := w.diagrams[src]
	if !ok || len(d.PNG) == 0 {
		if alt := attr(n, "alt"); alt != "" {
			w.pdf.SetFont("Helvetica", "I", bodyFontSize)
			w.block("["+alt+"]", "")
		}
		return
	}

	name := fmt.Sprintf("diagram-%d", d.Index)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	info := w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(d.PNG))
	if info == nil || !w.pdf.Ok() {
		return
	}

	pageW, pageH := w.pdf.GetPageSize()
	maxW := pageW - 2*pdfMargin
	width := float64(d.Width) * pxToMM
	if width <= 0 || width > maxW {
		width = maxW
	}
	height := width * info.Height() / info.Width()
	if maxH := pageH - 2*pdfMargin; height > maxH {
		width = width * maxH / height
		height = maxH
	}
	if w.pdf.GetY()+height > pageH-pdfMargin {
		w.pdf.AddPage()
	}
	x := pdfMargin + (maxW-width)/2
	y := w.pdf.GetY()
	w.pdf.ImageOptions(name, x, y, width, height, false, opts, 0, "")
	w.pdf.SetY(y + height + 4)
}

func textContent(n *html.Node, preserve bool) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			return
		}
		if !preserve && c.Type == html.ElementNode && c.DataAtom == atom.Br {
			b.WriteString(" ")
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			rec(gc)
		}
	}
	rec(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hexRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

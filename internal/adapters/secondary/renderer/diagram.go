package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// Canned failure diagnoses
const (
	DiagnosisSyntax      = "Syntax error in diagram. Please check the syntax."
	DiagnosisInvalidType = "Invalid diagram type. Start the diagram with a known type such as flowchart or sequenceDiagram."
	DiagnosisUnknown     = "Could not render diagram."
)

var leakedTagRe = regexp.MustCompile(`<div[^>]*>|</div>|<span[^>]*>|</span>`)

var diagnosisPatterns = []struct {
	needles   []string
	diagnosis string
}{
	{[]string{"parse error", "syntax error", "lexical error", "expecting"}, DiagnosisSyntax},
	{[]string{"no diagram type detected", "unknown diagram", "unknowndiagramerror"}, DiagnosisInvalidType},
	{[]string{"unknown error"}, DiagnosisUnknown},
}

// Preprocess normalizes line endings and strips container tags that leaked
// in from earlier render cycles
func Preprocess(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return leakedTagRe.ReplaceAllString(src, "")
}

// Diagnose maps a raw engine error to a short message
func Diagnose(raw string) string {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return DiagnosisUnknown
	}

	lower := strings.ToLower(msg)
	for _, p := range diagnosisPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.diagnosis
			}
		}
	}

	first, _, _ := strings.Cut(msg, "\n")
	return strings.TrimSpace(first)
}

// DiagramRenderer renders one diagram block through the engine and turns
// the outcome into slot content
type DiagramRenderer struct {
	engine    ports.DiagramEngine
	downloads *DownloadRegistry
	logger    *slog.Logger
}

// NewDiagramRenderer creates a renderer. downloads may be nil.
func NewDiagramRenderer(engine ports.DiagramEngine, downloads *DownloadRegistry, logger *slog.Logger) *DiagramRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagramRenderer{
		engine:    engine,
		downloads: downloads,
		logger:    logger.With("component", "diagram_renderer"),
	}
}

// DiagramID returns a fresh engine id for one render of a block
func DiagramID(blockID string) string {
	return fmt.Sprintf("mermaid-%s-%s", blockID, uuid.NewString())
}

// RenderOne renders a block. Failures and engine panics come back as
// DiagramFailure; nothing is retried.
func (r *DiagramRenderer) RenderOne(ctx context.Context, block entities.Block, theme entities.Theme) (outcome entities.DiagramOutcome) {
	source := Preprocess(block.Code)
	id := DiagramID(block.ID)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("diagram engine panicked", "block_id", block.ID, "panic", fmt.Sprint(rec))
			outcome = failure(block, fmt.Errorf("engine panic: %v", rec))
		}
	}()

	if r.engine == nil {
		return failure(block, errors.New("no diagram engine configured"))
	}

	svg, err := r.engine.Render(ctx, id, source, theme)
	if err != nil {
		r.logger.Debug("diagram render failed", "block_id", block.ID, "error", err)
		return failure(block, err)
	}
	if strings.TrimSpace(svg) == "" {
		return failure(block, errors.New("engine returned empty output"))
	}

	return entities.DiagramSuccess{Markup: svg}
}

// recordDownload stores the payload behind a committed diagram's button
func (r *DiagramRenderer) recordDownload(block entities.Block) {
	if r == nil || r.downloads == nil {
		return
	}
	r.downloads.Register(entities.DownloadRequest{
		BlockID: block.ID,
		Code:    block.Code,
		Title:   "Diagram " + block.ID,
	})
}

func (r *DiagramRenderer) forgetDownload(blockID string) {
	if r != nil && r.downloads != nil {
		r.downloads.Remove(blockID)
	}
}

func failure(block entities.Block, err error) entities.DiagramFailure {
	raw := ""
	if err != nil {
		raw = err.Error()
	}
	if strings.TrimSpace(raw) == "" {
		raw = "Unknown error"
	}
	return entities.DiagramFailure{
		Diagnosis: Diagnose(raw),
		RawSource: block.Code,
		RawError:  raw,
	}
}

// Nodes builds the slot content for an outcome. For a success the second
// and third results are the wrapper and vector container the zoom
// controller attaches to.
func (r *DiagramRenderer) Nodes(outcome entities.DiagramOutcome, block entities.Block) (root, wrapper, vector *html.Node) {
	switch o := outcome.(type) {
	case entities.DiagramSuccess:
		return successNodes(o, block)
	case entities.DiagramFailure:
		return errorPanel(o), nil, nil
	default:
		return errorPanel(failure(block, fmt.Errorf("unexpected outcome %T", outcome))), nil, nil
	}
}

func successNodes(o entities.DiagramSuccess, block entities.Block) (root, wrapper, vector *html.Node) {
	wrapper = element(atom.Div, "class", "mermaid-container")
	vector = element(atom.Div, "class", "mermaid-svg")

	nodes, err := parseFragment(o.Markup)
	if err != nil || len(nodes) == 0 {
		return errorPanel(failure(block, fmt.Errorf("engine output is not markup: %v", err))), nil, nil
	}
	appendAll(vector, nodes...)

	button := element(atom.Button,
		"type", "button",
		"class", "mermaid-download-btn",
		"title", "Download diagram",
		"data-block-id", block.ID,
	)
	button.AppendChild(text("Download"))

	appendAll(wrapper, vector, button)
	return wrapper, wrapper, vector
}

// errorPanel builds the inline failure panel. Text nodes are escaped on
// serialization, so source and error are never interpreted as markup.
func errorPanel(f entities.DiagramFailure) *html.Node {
	panel := element(atom.Div, "class", "mermaid-error", "role", "alert")

	title := appendAll(element(atom.Strong), text("Mermaid Diagram Error"))
	diagnosis := appendAll(element(atom.P, "class", "mermaid-error-diagnosis"), text(f.Diagnosis))

	code := appendAll(element(atom.Details, "class", "mermaid-error-source"),
		appendAll(element(atom.Summary), text("Show diagram code")),
		appendAll(element(atom.Pre), text(f.RawSource)),
	)
	raw := appendAll(element(atom.Details, "class", "mermaid-error-raw"),
		appendAll(element(atom.Summary), text("Show full error")),
		appendAll(element(atom.Pre), text(f.RawError)),
	)

	return appendAll(panel, title, diagnosis, code, raw)
}

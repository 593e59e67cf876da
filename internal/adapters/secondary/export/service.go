// Package export converts documents and diagrams into standalone files.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// Format is a document export format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts html or pdf
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", &ExportError{Type: ErrorTypeValidation, Message: "unsupported export format", Details: s}
	}
}

// Request describes one document export
type Request struct {
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Theme   entities.Theme `json:"theme"`
	Format  Format         `json:"format"`
	// OutputPath is only used by ExportFile
	OutputPath string `json:"output_path,omitempty"`
}

// Result describes a finished export
type Result struct {
	Format      Format    `json:"format"`
	OutputPath  string    `json:"output_path,omitempty"`
	MimeType    string    `json:"mime_type"`
	FileSize    int64     `json:"file_size"`
	Diagrams    int       `json:"diagrams"`
	Duration    string    `json:"duration"`
	Warnings    []string  `json:"warnings,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Data        []byte    `json:"-"`
}

// ExportErrorType categorizes export failures
type ExportErrorType string

const (
	ErrorTypeValidation ExportErrorType = "validation"
	ErrorTypeDiagram    ExportErrorType = "diagram"
	ErrorTypeRaster     ExportErrorType = "raster"
	ErrorTypeRenderer   ExportErrorType = "renderer"
	ErrorTypeFilesystem ExportErrorType = "filesystem"
	ErrorTypeCancelled  ExportErrorType = "cancelled"
)

// ExportError is the error type every export path returns
type ExportError struct {
	Type    ExportErrorType `json:"type"`
	Message string          `json:"message"`
	Details string          `json:"details,omitempty"`
	Cause   error           `json:"-"`
}

func (e *ExportError) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// Diagram is one converted diagram of a document. Index is 1-based and
// matches its placeholder.
type Diagram struct {
	Index   int
	Source  string
	PNG     []byte
	DataURL string
	Width   int
	Height  int
}

// Placeholder is the markdown image that stands in for diagram n
func Placeholder(n int) string {
	return fmt.Sprintf("![Mermaid Diagram %d](%s)", n, placeholderSrc(n))
}

func placeholderSrc(n int) string {
	return fmt.Sprintf("mermaid-diagram-%d.png", n)
}

// Exporter renders a document whose diagrams were already converted
type Exporter interface {
	Export(ctx context.Context, req Request, content string, diagrams []Diagram) ([]byte, error)
	MimeType() string
}

var exportFenceRe = regexp.MustCompile("```mermaid\\s*\\n([\\s\\S]*?)\\n```")

// Service converts diagrams concurrently and hands the document to the
// exporter registered for the requested format.
type Service struct {
	engine      ports.DiagramEngine
	raster      *Rasterizer
	exporters   map[Format]Exporter
	concurrency int
	logger      *slog.Logger

	mu     sync.Mutex
	active int
}

// NewService wires the html and pdf exporters
func NewService(engine ports.DiagramEngine, cfg *entities.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	raster := NewRasterizer(logger)
	s := &Service{
		engine:      engine,
		raster:      raster,
		exporters:   make(map[Format]Exporter),
		concurrency: cfg.Mermaid.GetMaxConcurrent(),
		logger:      logger.With("component", "export"),
	}
	s.RegisterExporter(FormatHTML, NewHTMLExporter(cfg.Highlight, cfg.Export.SanitizeHTML))
	s.RegisterExporter(FormatPDF, NewPDFExporter())
	return s
}

// RegisterExporter registers or replaces the exporter for format
func (s *Service) RegisterExporter(format Format, e Exporter) {
	s.exporters[format] = e
}

// Rasterizer returns the shared svg rasterizer
func (s *Service) Rasterizer() *Rasterizer {
	return s.raster
}

// Export renders req in memory.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := validate(&req); err != nil {
		return nil, err
	}
	exporter, ok := s.exporters[req.Format]
	if !ok {
		return nil, &ExportError{Type: ErrorTypeValidation, Message: "unsupported export format", Details: string(req.Format)}
	}

	s.track(1)
	defer s.track(-1)

	content, diagrams, warnings, err := s.ConvertDiagrams(ctx, req.Content, req.Theme)
	if err != nil {
		return nil, err
	}

	data, err := exporter.Export(ctx, req, content, diagrams)
	if err != nil {
		return nil, categorize(err)
	}

	s.logger.Info("document exported",
		"format", req.Format,
		"diagrams", len(diagrams),
		"bytes", len(data),
		"duration", time.Since(start))

	return &Result{
		Format:      req.Format,
		MimeType:    exporter.MimeType(),
		FileSize:    int64(len(data)),
		Diagrams:    len(diagrams),
		Duration:    time.Since(start).String(),
		Warnings:    warnings,
		GeneratedAt: time.Now(),
		Data:        data,
	}, nil
}

// ExportFile renders req and writes it to req.OutputPath.
func (s *Service) ExportFile(ctx context.Context, req Request) (*Result, error) {
	if req.OutputPath == "" {
		return nil, &ExportError{Type: ErrorTypeValidation, Message: "output path is required"}
	}
	if err := validateFilePath(req.OutputPath); err != nil {
		return nil, &ExportError{Type: ErrorTypeValidation, Message: "invalid output path", Details: req.OutputPath, Cause: err}
	}

	result, err := s.Export(ctx, req)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(req.OutputPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &ExportError{Type: ErrorTypeFilesystem, Message: "failed to create output directory", Details: dir, Cause: err}
	}
	if err := os.WriteFile(filepath.Clean(req.OutputPath), result.Data, 0o600); err != nil {
		return nil, &ExportError{Type: ErrorTypeFilesystem, Message: "failed to write export", Details: req.OutputPath, Cause: err}
	}
	result.OutputPath = req.OutputPath
	return result, nil
}

// ConvertDiagrams renders every diagram fence to png concurrently and
// replaces each converted fence with its placeholder. A fence that fails
// to convert is kept verbatim and reported as a warning.
func (s *Service) ConvertDiagrams(ctx context.Context, content string, theme entities.Theme) (string, []Diagram, []string, error) {
	matches := exportFenceRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil, nil, nil
	}

	type outcome struct {
		diagram Diagram
		err     error
	}
	outcomes := make([]outcome, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, m := range matches {
		source := strings.TrimSpace(renderer.Preprocess(content[m[2]:m[3]]))
		g.Go(func() error {
			d, err := s.convertOne(gctx, source, theme)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = outcome{diagram: d, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, nil, &ExportError{Type: ErrorTypeCancelled, Message: "diagram conversion cancelled", Cause: err}
	}

	var (
		b        strings.Builder
		diagrams []Diagram
		warnings []string
		last     int
	)
	for i, m := range matches {
		b.WriteString(content[last:m[0]])
		last = m[1]
		if outcomes[i].err != nil {
			warnings = append(warnings, fmt.Sprintf("diagram %d kept as source: %v", i+1, outcomes[i].err))
			b.WriteString(content[m[0]:m[1]])
			continue
		}
		d := outcomes[i].diagram
		d.Index = len(diagrams) + 1
		diagrams = append(diagrams, d)
		b.WriteString(Placeholder(d.Index))
	}
	b.WriteString(content[last:])

	for _, w := range warnings {
		s.logger.Warn("diagram conversion failed", "detail", w)
	}
	return b.String(), diagrams, warnings, nil
}

func (s *Service) convertOne(ctx context.Context, source string, theme entities.Theme) (Diagram, error) {
	if source == "" {
		return Diagram{}, errors.New("empty diagram")
	}
	svg, err := s.engine.Render(ctx, renderer.DiagramID("export"), source, theme)
	if err != nil {
		return Diagram{}, err
	}
	png, _, err := s.raster.Encode(ctx, svg, entities.RasterOptions{Theme: theme, Format: entities.FormatPNG})
	if err != nil {
		return Diagram{}, err
	}
	w, h := ExtractDimensions(svg)
	return Diagram{
		Source:  source,
		PNG:     png,
		DataURL: DataURL(entities.FormatPNG.MimeType(), png),
		Width:   w,
		Height:  h,
	}, nil
}

// Active reports exports currently running
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Service) track(delta int) {
	s.mu.Lock()
	s.active += delta
	s.mu.Unlock()
}

func validate(req *Request) error {
	if req.Format == "" {
		return &ExportError{Type: ErrorTypeValidation, Message: "export format is required"}
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = entities.DefaultDocumentTitle
	}
	if !req.Theme.Valid() {
		req.Theme = entities.ThemeLight
	}
	return nil
}

// categorize wraps foreign errors into an ExportError
func categorize(err error) *ExportError {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &ExportError{Type: ErrorTypeCancelled, Message: "export cancelled", Cause: err}
	case errors.Is(err, ErrInvalidSVG):
		return &ExportError{Type: ErrorTypeRaster, Message: "diagram conversion failed", Cause: err}
	default:
		return &ExportError{Type: ErrorTypeRenderer, Message: "renderer error", Cause: err}
	}
}

// validateFilePath rejects paths with parent directory segments
func validateFilePath(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if strings.Contains(path, "..") {
		return errors.New("path contains directory traversal")
	}
	return nil
}

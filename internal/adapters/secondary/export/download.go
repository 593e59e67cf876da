package export

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

var (
	titleLineRe  = regexp.MustCompile(`(?i)title\s+(.+)`)
	graphNameRe  = regexp.MustCompile(`(?i)(?:flowchart|graph)\s+(\w+)`)
	slugStripRe  = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	slugSpacesRe = regexp.MustCompile(`\s+`)

	now = time.Now
)

// DefaultFilename suggests a download name, without extension, for a
// diagram's source.
func DefaultFilename(code string) string {
	trimmed := strings.TrimSpace(code)
	first, _, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)

	if strings.HasPrefix(first, "title") {
		if m := titleLineRe.FindStringSubmatch(first); m != nil {
			if slug := Slugify(m[1]); slug != "" {
				return slug
			}
		}
	}
	if m := graphNameRe.FindStringSubmatch(trimmed); m != nil {
		return strings.ToLower(m[1])
	}
	return fmt.Sprintf("mermaid-diagram-%d", now().UnixMilli())
}

// Slugify lowercases s, folds accents and joins words with hyphens.
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = slugStripRe.ReplaceAllString(folded, "")
	folded = slugSpacesRe.ReplaceAllString(strings.TrimSpace(folded), "-")
	return strings.ToLower(folded)
}

// Artifact is an encoded diagram ready to be written or served
type Artifact struct {
	Filename string
	MimeType string
	Data     []byte
}

// Downloader renders diagram source and encodes it in the requested format.
type Downloader struct {
	engine ports.DiagramEngine
	raster *Rasterizer
	logger *slog.Logger
}

// NewDownloader creates a downloader over engine
func NewDownloader(engine ports.DiagramEngine, raster *Rasterizer, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	if raster == nil {
		raster = NewRasterizer(logger)
	}
	return &Downloader{engine: engine, raster: raster, logger: logger.With("component", "download")}
}

// Download renders code under opts.Theme and encodes it as opts.Format.
func (d *Downloader) Download(ctx context.Context, code string, opts entities.RasterOptions) (Artifact, error) {
	if !opts.Theme.Valid() {
		opts.Theme = entities.ThemeLight
	}
	if opts.Format == "" {
		opts.Format = entities.FormatPNG
	}

	source := strings.TrimSpace(renderer.Preprocess(code))
	if source == "" {
		return Artifact{}, &ExportError{Type: ErrorTypeValidation, Message: "diagram source is empty"}
	}

	svg, err := d.engine.Render(ctx, "mermaid-download-"+uuid.NewString(), source, opts.Theme)
	if err != nil {
		return Artifact{}, &ExportError{Type: ErrorTypeDiagram, Message: "failed to render diagram", Cause: err}
	}

	data, mime, err := d.raster.Encode(ctx, svg, opts)
	if err != nil {
		return Artifact{}, &ExportError{Type: ErrorTypeRaster, Message: "failed to convert diagram", Cause: err}
	}

	name := DefaultFilename(code) + "." + opts.Format.Extension()
	d.logger.Info("diagram downloaded", "file", name, "bytes", len(data))
	return Artifact{Filename: name, MimeType: mime, Data: data}, nil
}

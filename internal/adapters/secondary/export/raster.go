package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// ErrInvalidSVG is returned when the input has no svg root
var ErrInvalidSVG = errors.New("invalid svg content")

const (
	captionSize   = 14.0
	captionMargin = 12
)

// Rasterizer converts svg markup into png or jpeg images.
type Rasterizer struct {
	logger *slog.Logger

	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
}

var _ ports.DiagramRasterizer = (*Rasterizer)(nil)

// NewRasterizer creates a rasterizer
func NewRasterizer(logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{logger: logger.With("component", "raster")}
}

// ToRaster renders svg and returns it as a base64 data URL. Failures are
// always reported; a blank image is never returned in their place.
func (r *Rasterizer) ToRaster(ctx context.Context, svg string, opts entities.RasterOptions) (string, error) {
	data, mime, err := r.Encode(ctx, svg, opts)
	if err != nil {
		return "", err
	}
	return DataURL(mime, data), nil
}

// Encode renders svg into the encoded bytes of opts.Format.
func (r *Rasterizer) Encode(ctx context.Context, svg string, opts entities.RasterOptions) ([]byte, string, error) {
	if !strings.Contains(svg, "<svg") {
		return nil, "", ErrInvalidSVG
	}
	if !opts.Theme.Valid() {
		opts.Theme = entities.ThemeLight
	}
	if opts.Format == "" {
		opts.Format = entities.FormatPNG
	}

	if opts.Format == entities.FormatSVG {
		processed, err := ProcessSVG(svg, opts)
		if err != nil {
			return nil, "", err
		}
		return []byte(processed), opts.Format.MimeType(), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	img, err := r.render(svg, opts)
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	switch opts.Format {
	case entities.FormatJPG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.JPEGQuality()})
	case entities.FormatPNG:
		err = png.Encode(&buf, img)
	default:
		return nil, "", fmt.Errorf("unsupported raster format %q", opts.Format)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encoding %s: %w", opts.Format, err)
	}

	r.logger.Debug("diagram rasterized", "format", opts.Format, "bytes", buf.Len())
	return buf.Bytes(), opts.Format.MimeType(), nil
}

func (r *Rasterizer) render(svg string, opts entities.RasterOptions) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSVG, err)
	}

	width, height := targetSize(svg, opts)

	// Draw at the intrinsic size first, then resample to the target.
	iw := int(math.Ceil(icon.ViewBox.W))
	ih := int(math.Ceil(icon.ViewBox.H))
	if iw <= 0 || ih <= 0 {
		iw, ih = width, height
	}
	icon.SetTarget(0, 0, float64(iw), float64(ih))

	drawn := image.NewRGBA(image.Rect(0, 0, iw, ih))
	scanner := rasterx.NewScannerGV(iw, ih, drawn, drawn.Bounds())
	icon.Draw(rasterx.NewDasher(iw, ih, scanner), 1.0)

	var diagram image.Image = drawn
	if iw != width || ih != height {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), drawn, drawn.Bounds(), draw.Over, nil)
		diagram = scaled
	}

	band := 0
	if opts.Caption != "" {
		band = int(captionSize) + 2*captionMargin
	}

	dc := gg.NewContext(width, height+band)
	if !opts.Transparent || opts.Format == entities.FormatJPG {
		dc.SetHexColor(opts.Theme.Background())
		dc.Clear()
	}
	dc.DrawImage(diagram, 0, 0)

	if band > 0 {
		face, err := r.captionFace()
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(face)
		dc.SetHexColor(opts.Theme.Foreground())
		dc.DrawStringAnchored(opts.Caption, float64(width)/2, float64(height)+float64(band)/2, 0.5, 0.5)
	}
	return dc.Image(), nil
}

func (r *Rasterizer) captionFace() (font.Face, error) {
	r.fontOnce.Do(func() {
		r.font, r.fontErr = truetype.Parse(goregular.TTF)
	})
	if r.fontErr != nil {
		return nil, fmt.Errorf("parsing embedded font: %w", r.fontErr)
	}
	return truetype.NewFace(r.font, &truetype.Options{Size: captionSize}), nil
}

// targetSize resolves the output size from options, then the svg.
func targetSize(svg string, opts entities.RasterOptions) (int, int) {
	w, h := opts.Width, opts.Height
	if w > 0 && h > 0 {
		return w, h
	}
	sw, sh := ExtractDimensions(svg)
	if w <= 0 {
		w = sw
	}
	if h <= 0 {
		h = sh
	}
	return w, h
}

// DataURL encodes data as a base64 data URL
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

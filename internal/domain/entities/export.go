package entities

import (
	"fmt"
	"strings"
)

// ImageFormat is a diagram download format
type ImageFormat string

const (
	FormatPNG ImageFormat = "png"
	FormatJPG ImageFormat = "jpg"
	FormatSVG ImageFormat = "svg"
)

// DefaultJPEGQuality applies when RasterOptions.Quality is zero
const DefaultJPEGQuality = 0.9

// ParseImageFormat accepts png, jpg, jpeg and svg.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "svg":
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q (must be png, jpg or svg)", s)
	}
}

// MimeType returns the media type of the encoded image
func (f ImageFormat) MimeType() string {
	switch f {
	case FormatJPG:
		return "image/jpeg"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "image/png"
	}
}

// Extension returns the file extension without the dot
func (f ImageFormat) Extension() string {
	if f == "" {
		return string(FormatPNG)
	}
	return string(f)
}

// RasterOptions controls svg to raster conversion. Zero width or height
// falls back to the svg's own size, then to 800x600.
type RasterOptions struct {
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	Theme       Theme       `json:"theme"`
	Transparent bool        `json:"transparent"`
	Format      ImageFormat `json:"format"`
	// Quality is 0..1 and only affects jpg
	Quality float64 `json:"quality,omitempty"`
	// Caption is drawn in a band under the diagram when set
	Caption string `json:"caption,omitempty"`
}

// JPEGQuality maps Quality onto the 1..100 encoder range.
func (o RasterOptions) JPEGQuality() int {
	q := o.Quality
	if q <= 0 {
		q = DefaultJPEGQuality
	}
	if q > 1 {
		q = 1
	}
	n := int(q*100 + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// DownloadPreset is a named size and quality combination
type DownloadPreset struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Quality float64 `json:"quality"`
}

// DownloadPresets lists the presets offered by the download flow.
var DownloadPresets = []DownloadPreset{
	{Name: "web", Label: "Web", Width: 800, Height: 600, Quality: 0.8},
	{Name: "hd", Label: "HD", Width: 1920, Height: 1080, Quality: 0.9},
	{Name: "print", Label: "Print", Width: 2400, Height: 1800, Quality: 1.0},
	{Name: "mobile", Label: "Mobile", Width: 400, Height: 300, Quality: 0.7},
	{Name: "social", Label: "Social", Width: 1200, Height: 630, Quality: 0.85},
}

// FindPreset looks a preset up by name, case-insensitively
func FindPreset(name string) (DownloadPreset, bool) {
	for _, p := range DownloadPresets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return DownloadPreset{}, false
}

// Apply copies the preset's size and quality onto opts
func (p DownloadPreset) Apply(opts RasterOptions) RasterOptions {
	opts.Width = p.Width
	opts.Height = p.Height
	opts.Quality = p.Quality
	return opts
}

package renderer

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ZoomOptions bounds and tunes the zoom controller
type ZoomOptions struct {
	Min          float64
	Max          float64
	Rate         float64 // per wheel delta unit, no modifier
	ModifierRate float64 // per wheel delta unit, ctrl or meta held
	PanEnabled   bool
}

// DefaultZoomOptions matches the built-in preview configuration
func DefaultZoomOptions() ZoomOptions {
	return ZoomOptions{Min: 0.25, Max: 4.0, Rate: 0.0015, ModifierRate: 0.0025, PanEnabled: true}
}

// WheelEvent is a wheel gesture over a diagram
type WheelEvent struct {
	DeltaY float64
	Ctrl   bool
	Meta   bool
}

// DetachFn stops a controller from reacting to further events
type DetachFn func()

// Zoom holds the interactive scale of one mounted diagram. The scale
// itself lives on the slot, so a controller attached to fresh content in
// the same slot picks it up again.
//
// Zoom is not safe for concurrent use; RenderTree serializes access.
type Zoom struct {
	slot     *html.Node
	wrapper  *html.Node
	vector   *html.Node
	opts     ZoomOptions
	detached bool

	panning      bool
	lastX, lastY float64
}

// Attach wires a controller to a slot and applies the stored scale
func Attach(slot, wrapper, vector *html.Node, opts ZoomOptions) (*Zoom, DetachFn) {
	if opts.Min <= 0 || opts.Max <= 0 || opts.Min >= opts.Max {
		d := DefaultZoomOptions()
		opts.Min, opts.Max = d.Min, d.Max
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultZoomOptions().Rate
	}
	if opts.ModifierRate <= 0 {
		opts.ModifierRate = DefaultZoomOptions().ModifierRate
	}

	z := &Zoom{slot: slot, wrapper: wrapper, vector: vector, opts: opts}
	z.apply(z.clamp(readScale(slot)))

	return z, func() {
		z.detached = true
		z.panning = false
	}
}

// Scale returns the current scale
func (z *Zoom) Scale() float64 {
	return readScale(z.slot)
}

// Wheel zooms by the wheel delta. It reports whether the page scroll
// should be suppressed, which is only the case without a modifier.
func (z *Zoom) Wheel(ev WheelEvent) (preventDefault bool) {
	if z.detached {
		return false
	}

	modifier := ev.Ctrl || ev.Meta
	rate := z.opts.Rate
	if modifier {
		rate = z.opts.ModifierRate
	}

	z.apply(z.clamp(z.Scale() * (1 - ev.DeltaY*rate)))
	return !modifier
}

// DoubleClick resets the scale
func (z *Zoom) DoubleClick() {
	if z.detached {
		return
	}
	z.apply(1)
}

// PointerDown starts a pan on the primary button
func (z *Zoom) PointerDown(button int, x, y float64) {
	if z.detached || !z.opts.PanEnabled || button != 0 {
		return
	}
	z.panning = true
	z.lastX, z.lastY = x, y
}

// PointerMove scrolls the wrapper against the pointer movement
func (z *Zoom) PointerMove(x, y float64) {
	if z.detached || !z.panning {
		return
	}
	dx, dy := x-z.lastX, y-z.lastY
	z.lastX, z.lastY = x, y

	left := math.Max(0, readFloat(z.wrapper, attrScrollLeft, 0)-dx)
	top := math.Max(0, readFloat(z.wrapper, attrScrollTop, 0)-dy)
	setAttr(z.wrapper, attrScrollLeft, formatFloat(left))
	setAttr(z.wrapper, attrScrollTop, formatFloat(top))
}

// PointerUp ends a pan
func (z *Zoom) PointerUp() { z.panning = false }

// PointerLeave ends a pan
func (z *Zoom) PointerLeave() { z.panning = false }

// Panning reports whether a drag is in progress
func (z *Zoom) Panning() bool { return z.panning }

// ScrollOffset returns the wrapper scroll position
func (z *Zoom) ScrollOffset() (left, top float64) {
	return readFloat(z.wrapper, attrScrollLeft, 0), readFloat(z.wrapper, attrScrollTop, 0)
}

func (z *Zoom) clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Min(z.opts.Max, math.Max(z.opts.Min, s))
}

func (z *Zoom) apply(s float64) {
	setAttr(z.slot, attrZoomScale, formatFloat(s))
	if z.vector != nil {
		setAttr(z.vector, "style", mergeStyle(attrOr(z.vector, "style", ""), map[string]string{
			"transform":        "scale(" + formatFloat(s) + ")",
			"transform-origin": "0 0",
		}))
	}
	if z.wrapper != nil && z.opts.PanEnabled {
		setAttr(z.wrapper, "style", mergeStyle(attrOr(z.wrapper, "style", ""), map[string]string{
			"overflow": "auto",
			"cursor":   "grab",
		}))
	}
}

func readScale(slot *html.Node) float64 {
	s := readFloat(slot, attrZoomScale, 1)
	if s <= 0 {
		return 1
	}
	return s
}

func readFloat(n *html.Node, key string, def float64) float64 {
	v, ok := getAttr(n, key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// mergeStyle sets declarations in an inline style, keeping the others
func mergeStyle(style string, set map[string]string) string {
	var out []string
	for _, decl := range strings.Split(style, ";") {
		name, _, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if _, replaced := set[strings.TrimSpace(name)]; replaced {
			continue
		}
		out = append(out, strings.TrimSpace(decl))
	}
	for _, key := range []string{"transform", "transform-origin", "overflow", "cursor"} {
		if v, ok := set[key]; ok {
			out = append(out, key+": "+v)
		}
	}
	return strings.Join(out, "; ")
}

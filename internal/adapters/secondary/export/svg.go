package export

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

const (
	defaultWidth  = 800
	defaultHeight = 600
)

var (
	svgRootRe  = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	numberRe   = regexp.MustCompile(`^\s*([0-9]*\.?[0-9]+)\s*(px)?\s*$`)
	viewBoxSep = regexp.MustCompile(`[\s,]+`)
)

// ExtractDimensions reads the svg size from its width and height
// attributes, then its viewBox, falling back to 800x600.
func ExtractDimensions(svg string) (int, int) {
	root := svgRootRe.FindString(svg)
	if root == "" {
		return defaultWidth, defaultHeight
	}

	w, okW := parseLength(attrValue(root, "width"))
	h, okH := parseLength(attrValue(root, "height"))
	if okW && okH {
		return w, h
	}

	if vw, vh, ok := parseViewBox(attrValue(root, "viewBox")); ok {
		if !okW {
			w = vw
		}
		if !okH {
			h = vh
		}
		return w, h
	}
	if !okW {
		w = defaultWidth
	}
	if !okH {
		h = defaultHeight
	}
	return w, h
}

// ProcessSVG prepares svg for download: explicit size, background style
// and a viewBox when the source has none.
func ProcessSVG(svg string, opts entities.RasterOptions) (string, error) {
	loc := svgRootRe.FindStringIndex(svg)
	if loc == nil {
		return "", ErrInvalidSVG
	}
	root := svg[loc[0]:loc[1]]

	// the viewBox must describe the original coordinate space
	if attrValue(root, "viewBox") == "" {
		w, h := ExtractDimensions(svg)
		root = setAttr(root, "viewBox", fmt.Sprintf("0 0 %d %d", w, h))
	}
	if opts.Width > 0 {
		root = setAttr(root, "width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		root = setAttr(root, "height", strconv.Itoa(opts.Height))
	}

	bg := "transparent"
	if !opts.Transparent {
		theme := opts.Theme
		if !theme.Valid() {
			theme = entities.ThemeLight
		}
		bg = theme.Background()
	}
	root = setAttr(root, "style", mergeStyle(attrValue(root, "style"), "background-color", bg))

	return svg[:loc[0]] + root + svg[loc[1]:], nil
}

func attrRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\s` + regexp.QuoteMeta(name) + `\s*=\s*("[^"]*"|'[^']*')`)
}

func attrValue(tag, name string) string {
	m := attrRe(name).FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return m[1][1 : len(m[1])-1]
}

func setAttr(tag, name, value string) string {
	quoted := strings.ReplaceAll(value, `"`, "&quot;")
	re := attrRe(name)
	if re.MatchString(tag) {
		return re.ReplaceAllLiteralString(tag, ` `+name+`="`+quoted+`"`)
	}
	end := len(tag) - 1
	if strings.HasSuffix(tag, "/>") {
		end = len(tag) - 2
	}
	return tag[:end] + ` ` + name + `="` + quoted + `"` + tag[end:]
}

func mergeStyle(style, prop, value string) string {
	var parts []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		key, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(key), prop) {
			continue
		}
		parts = append(parts, decl)
	}
	parts = append(parts, prop+": "+value)
	return strings.Join(parts, "; ")
}

func parseLength(s string) (int, bool) {
	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(math.Ceil(f)), true
}

func parseViewBox(s string) (int, int, bool) {
	fields := viewBoxSep.Split(strings.TrimSpace(s), -1)
	if len(fields) != 4 {
		return 0, 0, false
	}
	w, errW := strconv.ParseFloat(fields[2], 64)
	h, errH := strconv.ParseFloat(fields[3], 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return int(math.Ceil(w)), int(math.Ceil(h)), true
}

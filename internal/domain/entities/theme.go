package entities

import (
	"fmt"
	"strings"
)

// Theme is the preview colour scheme. Only two palettes exist.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark" in any case.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", fmt.Errorf("unknown theme %q (must be light or dark)", s)
	}
}

// IsDark reports whether the theme is the dark palette
func (t Theme) IsDark() bool {
	return t == ThemeDark
}

// Valid reports whether t is one of the known themes
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Background returns the canvas colour used for diagrams and exports.
func (t Theme) Background() string {
	if t.IsDark() {
		return "#1a1a1a"
	}
	return "#ffffff"
}

// Foreground returns the body text colour used by exports.
func (t Theme) Foreground() string {
	if t.IsDark() {
		return "#ffffff"
	}
	return "#000000"
}

// MermaidTheme maps the palette to the diagram engine's theme name.
func (t Theme) MermaidTheme() string {
	if t.IsDark() {
		return "dark"
	}
	return "default"
}

func (t Theme) String() string {
	return string(t)
}

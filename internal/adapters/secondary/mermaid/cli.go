package mermaid

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"go.abhg.dev/goldmark/mermaid"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

type ctxKey int

const (
	svgIDKey ctxKey = iota
	themeKey
)

// withRender tags ctx with the svg id and theme for the next CLI call
func withRender(ctx context.Context, id string, theme entities.Theme) context.Context {
	ctx = context.WithValue(ctx, svgIDKey, id)
	return context.WithValue(ctx, themeKey, theme)
}

// themeConfig is the mmdc --configFile payload
type themeConfig struct {
	Theme         string         `json:"theme"`
	SecurityLevel string         `json:"securityLevel"`
	FontFamily    string         `json:"fontFamily"`
	FontSize      int            `json:"fontSize"`
	HTMLLabels    bool           `json:"htmlLabels"`
	Flowchart     map[string]any `json:"flowchart"`
	Sequence      map[string]any `json:"sequence"`
	ER            map[string]any `json:"er"`
}

func newThemeConfig(theme entities.Theme, cfg entities.MermaidConfig) themeConfig {
	return themeConfig{
		Theme:         theme.MermaidTheme(),
		SecurityLevel: "loose",
		FontFamily:    cfg.GetFontFamily(),
		FontSize:      cfg.GetFontSize(),
		HTMLLabels:    true,
		Flowchart:     map[string]any{"useMaxWidth": true, "htmlLabels": true},
		Sequence:      map[string]any{"useMaxWidth": true},
		ER:            map[string]any{"useMaxWidth": true},
	}
}

// themedCLI wraps an mmdc binary, adding the per-theme config file and
// the per-call svg id carried on the context.
type themedCLI struct {
	base mermaid.CLI
	cfg  entities.MermaidConfig
	dir  string

	mu    sync.Mutex
	files map[entities.Theme]string
}

var _ mermaid.CLI = (*themedCLI)(nil)

func newThemedCLI(base mermaid.CLI, cfg entities.MermaidConfig) (*themedCLI, error) {
	dir, err := os.MkdirTemp("", "mdlive-mermaid-*")
	if err != nil {
		return nil, fmt.Errorf("creating mermaid config dir: %w", err)
	}
	return &themedCLI{
		base:  base,
		cfg:   cfg,
		dir:   dir,
		files: make(map[entities.Theme]string),
	}, nil
}

func (c *themedCLI) CommandContext(ctx context.Context, args ...string) *exec.Cmd {
	extra := make([]string, 0, len(args)+4)
	extra = append(extra, args...)

	theme, _ := ctx.Value(themeKey).(entities.Theme)
	if !theme.Valid() {
		theme = entities.ThemeLight
	}
	if path, err := c.configFile(theme); err == nil {
		extra = append(extra, "--configFile", path)
	}
	if id, ok := ctx.Value(svgIDKey).(string); ok && id != "" {
		extra = append(extra, "--svgId", id)
	}
	return c.base.CommandContext(ctx, extra...)
}

// configFile writes the theme config once and returns its path
func (c *themedCLI) configFile(theme entities.Theme) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path, ok := c.files[theme]; ok {
		return path, nil
	}
	data, err := json.Marshal(newThemeConfig(theme, c.cfg))
	if err != nil {
		return "", err
	}
	path := filepath.Join(c.dir, theme.String()+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	c.files[theme] = path
	return path, nil
}

func (c *themedCLI) close() error {
	return os.RemoveAll(c.dir)
}

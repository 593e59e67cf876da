// Package mermaid renders diagram source to svg through the mmdc CLI.
package mermaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.abhg.dev/goldmark/mermaid"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// ErrCLINotFound is returned when the mmdc binary cannot be located
var ErrCLINotFound = errors.New("mermaid CLI not found")

// Compiler compiles one diagram. *mermaid.CLICompiler satisfies it.
type Compiler interface {
	Compile(ctx context.Context, req *mermaid.CompileRequest) (*mermaid.CompileResponse, error)
}

// CompilerFactory builds a compiler for a theme
type CompilerFactory func(theme entities.Theme) Compiler

// Engine renders diagrams with bounded concurrency, a per-render timeout
// and an svg cache.
type Engine struct {
	compilers CompilerFactory
	cache     *SVGCache
	semaphore chan struct{}
	timeout   time.Duration
	logger    *slog.Logger
	cli       *themedCLI

	mu     sync.Mutex
	active int
}

var _ ports.DiagramEngine = (*Engine)(nil)

// NewEngine creates an engine that shells out to the configured mmdc.
func NewEngine(cfg entities.MermaidConfig, logger *slog.Logger) (*Engine, error) {
	path, err := exec.LookPath(cfg.GetCLIPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCLINotFound, cfg.GetCLIPath())
	}
	cli, err := newThemedCLI(mermaid.MMDC(path), cfg)
	if err != nil {
		return nil, err
	}

	e := NewEngineWithCompiler(cfg, func(theme entities.Theme) Compiler {
		return &mermaid.CLICompiler{CLI: cli, Theme: theme.MermaidTheme()}
	}, logger)
	e.cli = cli
	return e, nil
}

// NewEngineWithCompiler creates an engine over an arbitrary compiler.
func NewEngineWithCompiler(cfg entities.MermaidConfig, compilers CompilerFactory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		compilers: compilers,
		cache:     NewSVGCache(cfg.GetCacheSize(), cfg.GetCacheTTL()),
		semaphore: make(chan struct{}, cfg.GetMaxConcurrent()),
		timeout:   cfg.GetTimeout(),
		logger:    logger.With("component", "mermaid"),
	}
}

type unavailable struct{ err error }

func (u unavailable) Compile(context.Context, *mermaid.CompileRequest) (*mermaid.CompileResponse, error) {
	return nil, u.err
}

// Unavailable returns a factory whose compilers always fail with err. It
// keeps the preview usable without mmdc: diagrams show the error panel.
func Unavailable(err error) CompilerFactory {
	return func(entities.Theme) Compiler { return unavailable{err: err} }
}

// Render compiles source under theme. The returned svg root carries id.
func (e *Engine) Render(ctx context.Context, id, source string, theme entities.Theme) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.New("empty diagram source")
	}

	key := CacheKey(theme, source)
	if svg, ok := e.cache.Get(key, id); ok {
		e.logger.Debug("diagram cache hit", "id", id)
		return svg, nil
	}

	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	e.track(1)
	defer e.track(-1)

	renderCtx, cancel := context.WithTimeout(withRender(ctx, id, theme), e.timeout)
	defer cancel()

	start := time.Now()
	svg, err := e.compile(renderCtx, theme, source)
	if err != nil {
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("diagram render timed out after %s: %w", e.timeout, err)
		}
		e.logger.Debug("diagram render failed", "id", id, "error", err)
		return "", err
	}
	if strings.TrimSpace(svg) == "" {
		return "", errors.New("diagram engine returned no output")
	}

	e.logger.Debug("diagram rendered", "id", id, "duration", time.Since(start))
	e.cache.Set(key, id, svg)
	return svg, nil
}

// compile runs the compiler in its own goroutine so a hung or panicking
// compiler cannot outlive the render context.
func (e *Engine) compile(ctx context.Context, theme entities.Theme, source string) (string, error) {
	type result struct {
		svg string
		err error
	}
	done := make(chan result, 1)

	go func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res = result{err: fmt.Errorf("diagram engine panic: %v", r)}
			}
			done <- res
		}()
		resp, err := e.compilers(theme).Compile(ctx, &mermaid.CompileRequest{Source: source})
		if err != nil {
			res.err = err
			return
		}
		if resp != nil {
			res.svg = resp.SVG
		}
	}()

	select {
	case res := <-done:
		return res.svg, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) track(delta int) {
	e.mu.Lock()
	e.active += delta
	e.mu.Unlock()
}

// Active reports the number of renders currently holding a slot
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// CacheStats exposes the svg cache counters
func (e *Engine) CacheStats() entities.CacheStats {
	return e.cache.Stats()
}

// ClearCache empties the svg cache
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// Close removes the temporary theme config files.
func (e *Engine) Close() error {
	if e.cli == nil {
		return nil
	}
	return e.cli.close()
}

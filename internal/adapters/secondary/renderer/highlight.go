package renderer

import (
	"fmt"
	stdhtml "html"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// ChromaHighlighter renders code views with inline styles, so the
// preview needs no per-theme stylesheet
type ChromaHighlighter struct {
	config    entities.HighlightConfig
	formatter *chromahtml.Formatter

	lexerMu    sync.RWMutex
	lexerCache map[string]chroma.Lexer
}

// NewChromaHighlighter creates a highlighter for the configured styles
func NewChromaHighlighter(config entities.HighlightConfig) *ChromaHighlighter {
	return &ChromaHighlighter{
		config: config,
		formatter: chromahtml.New(
			chromahtml.WithClasses(false),
			chromahtml.WithLineNumbers(config.LineNumbers),
			chromahtml.TabWidth(4),
		),
		lexerCache: make(map[string]chroma.Lexer),
	}
}

// Highlight renders code as a language-tagged block in the theme's palette
func (h *ChromaHighlighter) Highlight(code, language string, theme entities.Theme) (string, error) {
	styleName := h.config.StyleFor(theme)
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := h.lexer(language).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenizing code: %w", err)
	}

	var out strings.Builder
	fmt.Fprintf(&out, `<div class="code-block" data-language="%s"><div class="code-header"><span class="code-language">%s</span></div>`,
		stdhtml.EscapeString(language), stdhtml.EscapeString(language))
	if err := h.formatter.Format(&out, style, iterator); err != nil {
		return "", fmt.Errorf("formatting code: %w", err)
	}
	out.WriteString(`</div>`)

	return out.String(), nil
}

func (h *ChromaHighlighter) lexer(language string) chroma.Lexer {
	h.lexerMu.RLock()
	lexer, ok := h.lexerCache[language]
	h.lexerMu.RUnlock()
	if ok {
		return lexer
	}

	h.lexerMu.Lock()
	defer h.lexerMu.Unlock()

	if lexer, ok = h.lexerCache[language]; ok {
		return lexer
	}

	lexer = lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	h.lexerCache[language] = lexer
	return lexer
}

// LazyHighlighter builds its highlighter on first use and keeps it for
// the rest of the session
type LazyHighlighter struct {
	once    sync.Once
	build   func() ports.Highlighter
	current ports.Highlighter
}

// NewLazyHighlighter wraps a factory
func NewLazyHighlighter(build func() ports.Highlighter) *LazyHighlighter {
	return &LazyHighlighter{build: build}
}

// Highlight delegates to the memoized highlighter
func (l *LazyHighlighter) Highlight(code, language string, theme entities.Theme) (string, error) {
	l.once.Do(func() {
		l.current = l.build()
	})
	return l.current.Highlight(code, language, theme)
}

// plainCodeView is the fallback when highlighting fails
func plainCodeView(code, language string) string {
	return fmt.Sprintf(`<div class="code-block" data-language="%s"><pre><code>%s</code></pre></div>`,
		stdhtml.EscapeString(language), stdhtml.EscapeString(code))
}

var (
	_ ports.Highlighter = (*ChromaHighlighter)(nil)
	_ ports.Highlighter = (*LazyHighlighter)(nil)
)

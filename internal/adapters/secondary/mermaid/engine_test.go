package mermaid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/goldmark/mermaid"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// MockCompiler records compile calls and echoes the svg id from ctx
type MockCompiler struct {
	mock.Mock
	Delay time.Duration
	Panic bool
}

func (m *MockCompiler) Compile(ctx context.Context, req *mermaid.CompileRequest) (*mermaid.CompileResponse, error) {
	if m.Panic {
		panic("compiler exploded")
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	args := m.Called(req.Source)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	svg := args.String(0)
	if strings.Contains(svg, "%") {
		id, _ := ctx.Value(svgIDKey).(string)
		svg = fmt.Sprintf(svg, id)
	}
	return &mermaid.CompileResponse{SVG: svg}, nil
}

func testConfig() entities.MermaidConfig {
	return entities.MermaidConfig{MaxConcurrent: 2, TimeoutSeconds: 1}
}

func newTestEngine(c Compiler) *Engine {
	return NewEngineWithCompiler(testConfig(), func(entities.Theme) Compiler { return c }, nil)
}

func TestEngine_Render(t *testing.T) {
	t.Run("returns svg carrying the requested id", func(t *testing.T) {
		c := &MockCompiler{}
		c.On("Compile", "graph TD; A-->B").Return(`<svg id="%s"></svg>`, nil).Once()
		e := newTestEngine(c)

		svg, err := e.Render(context.Background(), "mermaid-a", "graph TD; A-->B", entities.ThemeLight)

		require.NoError(t, err)
		assert.Equal(t, `<svg id="mermaid-a"></svg>`, svg)
		c.AssertExpectations(t)
	})

	t.Run("cache hit rewrites the id", func(t *testing.T) {
		c := &MockCompiler{}
		c.On("Compile", "graph TD; A-->B").Return(`<svg id="%s"><style>#%[1]s .node{}</style></svg>`, nil).Once()
		e := newTestEngine(c)

		_, err := e.Render(context.Background(), "mermaid-first", "graph TD; A-->B", entities.ThemeLight)
		require.NoError(t, err)
		svg, err := e.Render(context.Background(), "mermaid-second", "graph TD; A-->B", entities.ThemeLight)
		require.NoError(t, err)

		assert.Equal(t, `<svg id="mermaid-second"><style>#mermaid-second .node{}</style></svg>`, svg)
		assert.Equal(t, int64(1), e.CacheStats().Hits)
		c.AssertNumberOfCalls(t, "Compile", 1)
	})

	t.Run("theme is part of the cache key", func(t *testing.T) {
		c := &MockCompiler{}
		c.On("Compile", "pie").Return(`<svg id="%s"></svg>`, nil).Twice()
		e := newTestEngine(c)

		_, err := e.Render(context.Background(), "a", "pie", entities.ThemeLight)
		require.NoError(t, err)
		_, err = e.Render(context.Background(), "b", "pie", entities.ThemeDark)
		require.NoError(t, err)

		c.AssertNumberOfCalls(t, "Compile", 2)
	})

	t.Run("compiler error is returned and not cached", func(t *testing.T) {
		c := &MockCompiler{}
		c.On("Compile", "bogus").Return("", errors.New("Parse error on line 1")).Twice()
		e := newTestEngine(c)

		_, err := e.Render(context.Background(), "a", "bogus", entities.ThemeLight)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Parse error")
		_, err = e.Render(context.Background(), "b", "bogus", entities.ThemeLight)
		require.Error(t, err)

		c.AssertNumberOfCalls(t, "Compile", 2)
	})

	t.Run("empty output is an error", func(t *testing.T) {
		c := &MockCompiler{}
		c.On("Compile", "graph TD").Return("  ", nil)
		e := newTestEngine(c)

		_, err := e.Render(context.Background(), "a", "graph TD", entities.ThemeLight)
		assert.Error(t, err)
	})

	t.Run("empty source is rejected without compiling", func(t *testing.T) {
		c := &MockCompiler{}
		e := newTestEngine(c)

		_, err := e.Render(context.Background(), "a", " \n", entities.ThemeLight)
		assert.Error(t, err)
		c.AssertNotCalled(t, "Compile", mock.Anything)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		e := newTestEngine(&MockCompiler{Panic: true})

		_, err := e.Render(context.Background(), "a", "graph TD", entities.ThemeLight)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic")
	})

	t.Run("timeout", func(t *testing.T) {
		c := &MockCompiler{Delay: 5 * time.Second}
		e := newTestEngine(c)

		start := time.Now()
		_, err := e.Render(context.Background(), "a", "graph TD", entities.ThemeLight)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.Less(t, time.Since(start), 3*time.Second)
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := &MockCompiler{Delay: 5 * time.Second}
		e := newTestEngine(c)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.Render(ctx, "a", "graph TD", entities.ThemeLight)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type countingCompiler struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (c *countingCompiler) Compile(ctx context.Context, req *mermaid.CompileRequest) (*mermaid.CompileResponse, error) {
	n := c.current.Add(1)
	defer c.current.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return &mermaid.CompileResponse{SVG: "<svg></svg>"}, nil
}

func TestEngine_BoundedConcurrency(t *testing.T) {
	c := &countingCompiler{}
	e := newTestEngine(c)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Render(context.Background(), fmt.Sprintf("id-%d", i), fmt.Sprintf("graph TD; N%d", i), entities.ThemeLight)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.peak.Load(), int32(2))
	assert.Equal(t, 0, e.Active())
}

func TestNewEngine_MissingCLI(t *testing.T) {
	_, err := NewEngine(entities.MermaidConfig{CLIPath: "/nonexistent/mmdc-binary"}, nil)
	assert.ErrorIs(t, err, ErrCLINotFound)
}

func TestEngine_Unavailable(t *testing.T) {
	_, cause := NewEngine(entities.MermaidConfig{CLIPath: "/nonexistent/mmdc-binary"}, nil)
	e := NewEngineWithCompiler(entities.MermaidConfig{}, Unavailable(cause), nil)

	_, err := e.Render(context.Background(), "d1", "graph TD\nA-->B", entities.ThemeLight)
	assert.ErrorIs(t, err, ErrCLINotFound)
	assert.Zero(t, e.CacheStats().Size)
}

package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// stubEngine renders "flowchart"-like sources to a tiny svg and fails on
// sources containing "FAIL". With gate set, each call blocks until its
// release channel is closed.
type stubEngine struct {
	mu    sync.Mutex
	calls []stubCall
	gate  bool
	gates map[int]chan struct{}
}

type stubCall struct {
	ID     string
	Source string
	Theme  entities.Theme
}

func (e *stubEngine) Render(ctx context.Context, id, source string, theme entities.Theme) (string, error) {
	e.mu.Lock()
	n := len(e.calls)
	e.calls = append(e.calls, stubCall{ID: id, Source: source, Theme: theme})
	var wait chan struct{}
	if e.gate {
		if e.gates == nil {
			e.gates = make(map[int]chan struct{})
		}
		if _, ok := e.gates[n]; !ok {
			e.gates[n] = make(chan struct{})
		}
		wait = e.gates[n]
	}
	e.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if strings.Contains(source, "FAIL") {
		return "", errors.New("Parse error on line 2:\nExpecting 'SEMI', got 'EOF'")
	}
	return fmt.Sprintf(`<svg id="%s" data-theme="%s" width="100" height="50"><rect width="10" height="10"></rect></svg>`, id, theme), nil
}

// release unblocks the n-th call (0-based)
func (e *stubEngine) release(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gates == nil {
		e.gates = make(map[int]chan struct{})
	}
	ch, ok := e.gates[n]
	if !ok {
		ch = make(chan struct{})
		e.gates[n] = ch
	}
	close(ch)
}

func (e *stubEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *stubEngine) call(n int) stubCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[n]
}

type panicEngine struct{}

func (panicEngine) Render(context.Context, string, string, entities.Theme) (string, error) {
	panic("engine crashed")
}

type recordingRequester struct {
	mu   sync.Mutex
	reqs []entities.DownloadRequest
}

func (r *recordingRequester) RequestDownload(req entities.DownloadRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
}

package renderer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

var renderSeq atomic.Uint64

// NextToken returns the next generation token. Tokens increase for the
// life of the process.
func NextToken() uint64 {
	return renderSeq.Add(1)
}

// Slot update kinds
const (
	SlotCode    = "code"
	SlotDiagram = "diagram"
	SlotError   = "error"
)

// SlotUpdate describes one committed slot write
type SlotUpdate struct {
	BlockID string  `json:"block_id"`
	Token   uint64  `json:"token"`
	Kind    string  `json:"kind"`
	HTML    string  `json:"html"`
	Scale   float64 `json:"scale"`
}

// SlotListener is told about every committed write, outside the tree lock
type SlotListener func(SlotUpdate)

// Pass is the handle of one reconciliation pass
type Pass struct {
	token uint64
	wg    sync.WaitGroup
}

// Token returns the generation token of the pass
func (p *Pass) Token() uint64 { return p.token }

// Wait blocks until every render started by the pass has finished
// (committed or discarded) or ctx is done
func (p *Pass) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Orchestrator mounts code views and diagrams into the slots of a tree.
// Every pass stamps the slots it touches with a fresh token; a render only
// commits if its slot still carries the token it started under.
type Orchestrator struct {
	ctx         context.Context
	diagrams    *DiagramRenderer
	highlighter ports.Highlighter
	zoom        ZoomOptions
	logger      *slog.Logger

	listenerMu sync.RWMutex
	listener   SlotListener
}

// OrchestratorOptions configures an Orchestrator
type OrchestratorOptions struct {
	// Context bounds all diagram renders; defaults to Background
	Context context.Context
	Zoom    ZoomOptions
	Logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(diagrams *DiagramRenderer, highlighter ports.Highlighter, opts OrchestratorOptions) *Orchestrator {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Zoom == (ZoomOptions{}) {
		opts.Zoom = DefaultZoomOptions()
	}
	return &Orchestrator{
		ctx:         opts.Context,
		diagrams:    diagrams,
		highlighter: highlighter,
		zoom:        opts.Zoom,
		logger:      opts.Logger.With("component", "orchestrator"),
	}
}

// SetListener registers the slot listener
func (o *Orchestrator) SetListener(l SlotListener) {
	o.listenerMu.Lock()
	defer o.listenerMu.Unlock()
	o.listener = l
}

// ContentHash identifies a block's source for the skip check
func ContentHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:8])
}

type codeJob struct {
	block entities.Block
	hash  string
}

// Reconcile brings the tree in line with blocks under theme. Code views
// are mounted before it returns; diagrams render in the background.
func (o *Orchestrator) Reconcile(tree *RenderTree, blocks []entities.Block, theme entities.Theme) *Pass {
	return o.run(tree, blocks, theme, false)
}

// Refresh discards every rendered diagram and error panel, stamps all
// slots with one new token and renders every block again.
func (o *Orchestrator) Refresh(tree *RenderTree, blocks []entities.Block, theme entities.Theme) *Pass {
	return o.run(tree, blocks, theme, true)
}

func (o *Orchestrator) run(tree *RenderTree, blocks []entities.Block, theme entities.Theme, force bool) *Pass {
	pass := &Pass{token: NextToken()}
	stamp := strconv.FormatUint(pass.token, 10)

	var (
		codeJobs    []codeJob
		diagramJobs []entities.Block
	)

	tree.mu.Lock()
	if force {
		for _, n := range renderedSelector.MatchAll(tree.root) {
			if slot := enclosingSlot(n); slot != nil {
				tree.detachZoom(slot)
			}
			detachNode(n)
		}
		for _, slot := range slotSelector.MatchAll(tree.root) {
			setAttr(slot, attrRenderToken, stamp)
		}
	}

	for _, block := range blocks {
		slot := tree.slot(block.ID)
		if slot == nil {
			continue
		}
		hash := ContentHash(block.Code)

		if block.IsDiagram {
			if !force && diagramCurrent(slot, hash, theme) {
				continue
			}
			setAttr(slot, attrRenderToken, stamp)
			diagramJobs = append(diagramJobs, block)
			continue
		}

		if !force && codeCurrent(slot, block, hash, theme) {
			continue
		}
		setAttr(slot, attrRenderToken, stamp)
		codeJobs = append(codeJobs, codeJob{block: block, hash: hash})
	}
	tree.mu.Unlock()

	o.mountCode(tree, codeJobs, theme, stamp, pass.token)

	for _, block := range diagramJobs {
		pass.wg.Add(1)
		go func(block entities.Block) {
			defer pass.wg.Done()
			o.renderDiagram(tree, block, theme, stamp, pass.token)
		}(block)
	}

	o.logger.Debug("reconcile pass started",
		"token", pass.token,
		"theme", theme.String(),
		"refresh", force,
		"code_blocks", len(codeJobs),
		"diagrams", len(diagramJobs),
	)

	return pass
}

// settled reports whether the last write to the slot came from the pass
// that stamped it last, i.e. no render is still in flight for it
func settled(slot *html.Node) bool {
	token, ok := getAttr(slot, attrRenderToken)
	return ok && attrOr(slot, attrCommitToken, "") == token
}

// diagramCurrent reports whether the slot already shows this source in
// this theme
func diagramCurrent(slot *html.Node, hash string, theme entities.Theme) bool {
	if containerSelector.MatchFirst(slot) == nil || !settled(slot) {
		return false
	}
	return attrOr(slot, attrContentHash, "") == hash && attrOr(slot, attrTheme, "") == theme.String()
}

func codeCurrent(slot *html.Node, block entities.Block, hash string, theme entities.Theme) bool {
	if slot.FirstChild == nil || !settled(slot) {
		return false
	}
	return attrOr(slot, attrContentHash, "") == hash &&
		attrOr(slot, attrTheme, "") == theme.String() &&
		attrOr(slot, attrLanguage, "") == block.Language
}

func (o *Orchestrator) mountCode(tree *RenderTree, jobs []codeJob, theme entities.Theme, stamp string, token uint64) {
	if len(jobs) == 0 {
		return
	}

	views := make([][]*html.Node, len(jobs))
	for i, job := range jobs {
		markup, err := o.highlight(job.block, theme)
		if err != nil {
			o.logger.Warn("highlighting failed, using plain view", "block_id", job.block.ID, "error", err)
			markup = plainCodeView(job.block.Code, job.block.Language)
		}
		nodes, err := parseFragment(markup)
		if err != nil {
			o.logger.Warn("parsing code view failed", "block_id", job.block.ID, "error", err)
			nodes, _ = parseFragment(plainCodeView(job.block.Code, job.block.Language))
		}
		views[i] = nodes
	}

	var updates []SlotUpdate
	tree.mu.Lock()
	for i, job := range jobs {
		slot := tree.slot(job.block.ID)
		if slot == nil || attrOr(slot, attrRenderToken, "") != stamp {
			continue
		}
		tree.detachZoom(slot)
		removeChildren(slot)
		appendAll(slot, views[i]...)
		setAttr(slot, attrCommitToken, stamp)
		setAttr(slot, attrContentHash, job.hash)
		setAttr(slot, attrTheme, theme.String())
		setAttr(slot, attrLanguage, job.block.Language)
		o.diagrams.forgetDownload(job.block.ID)
		updates = append(updates, SlotUpdate{
			BlockID: job.block.ID,
			Token:   token,
			Kind:    SlotCode,
			HTML:    renderChildren(slot),
			Scale:   readScale(slot),
		})
	}
	tree.mu.Unlock()

	o.notify(updates...)
}

func (o *Orchestrator) highlight(block entities.Block, theme entities.Theme) (markup string, err error) {
	if o.highlighter == nil {
		return plainCodeView(block.Code, block.Language), nil
	}
	return o.highlighter.Highlight(block.Code, block.Language, theme)
}

func (o *Orchestrator) renderDiagram(tree *RenderTree, block entities.Block, theme entities.Theme, stamp string, token uint64) {
	outcome := o.diagrams.RenderOne(o.ctx, block, theme)
	root, wrapper, vector := o.diagrams.Nodes(outcome, block)

	tree.mu.Lock()
	slot := tree.slot(block.ID)
	if slot == nil || attrOr(slot, attrRenderToken, "") != stamp {
		tree.mu.Unlock()
		o.logger.Debug("discarding stale diagram render", "block_id", block.ID, "token", token)
		return
	}

	tree.detachZoom(slot)
	removeChildren(slot)
	slot.AppendChild(root)
	setAttr(slot, attrCommitToken, stamp)
	setAttr(slot, attrContentHash, ContentHash(block.Code))
	setAttr(slot, attrTheme, theme.String())
	removeAttr(slot, attrLanguage)

	kind := SlotError
	if wrapper != nil {
		kind = SlotDiagram
		tree.attachZoom(slot, wrapper, vector, o.zoom)
		o.diagrams.recordDownload(block)
	} else {
		o.diagrams.forgetDownload(block.ID)
	}

	update := SlotUpdate{
		BlockID: block.ID,
		Token:   token,
		Kind:    kind,
		HTML:    renderChildren(slot),
		Scale:   readScale(slot),
	}
	tree.mu.Unlock()

	o.notify(update)
}

func (o *Orchestrator) notify(updates ...SlotUpdate) {
	o.listenerMu.RLock()
	l := o.listener
	o.listenerMu.RUnlock()

	if l == nil {
		return
	}
	for _, u := range updates {
		l(u)
	}
}

// enclosingSlot walks up to the slot holding n
func enclosingSlot(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && hasClass(p, entities.PlaceholderClass) {
			return p
		}
	}
	return nil
}

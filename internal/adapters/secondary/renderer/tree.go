package renderer

import (
	"fmt"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// RenderTree is the preview container: the extracted HTML with one slot
// per block. All access goes through its mutex; a token check and the
// write it guards always happen inside one critical section.
type RenderTree struct {
	mu    sync.Mutex
	root  *html.Node
	zooms map[*html.Node]*zoomAttachment
}

type zoomAttachment struct {
	zoom   *Zoom
	detach DetachFn
}

// NewRenderTree creates an empty tree
func NewRenderTree() *RenderTree {
	return &RenderTree{
		root:  element(atom.Div, "id", "preview"),
		zooms: make(map[*html.Node]*zoomAttachment),
	}
}

// Load replaces the whole tree. Every slot is new afterwards, so zoom
// state from the previous content is gone.
func (t *RenderTree) Load(markup string) error {
	_, err := t.load(markup, false, nil)
	return err
}

// Update replaces the tree with markup from a new extraction pass. When
// the new markup has the same slots in the same order, the existing slot
// nodes are carried over with their content, render state and zoom, and
// kept is true. Otherwise every slot is new and onReplace, if set, runs
// inside the tree lock.
func (t *RenderTree) Update(markup string, onReplace func()) (kept bool, err error) {
	return t.load(markup, true, onReplace)
}

func (t *RenderTree) load(markup string, keepSlots bool, onReplace func()) (bool, error) {
	nodes, err := parseFragment(markup)
	if err != nil {
		return false, fmt.Errorf("parsing preview html: %w", err)
	}
	holder := appendAll(element(atom.Div), nodes...)

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := false
	if keepSlots {
		kept = carrySlots(slotSelector.MatchAll(t.root), slotSelector.MatchAll(holder))
	}
	if !kept {
		for slot, za := range t.zooms {
			za.detach()
			delete(t.zooms, slot)
		}
		if onReplace != nil {
			onReplace()
		}
	}

	removeChildren(t.root)
	for c := holder.FirstChild; c != nil; c = holder.FirstChild {
		holder.RemoveChild(c)
		t.root.AppendChild(c)
	}
	return kept, nil
}

// carrySlots swaps each fresh slot for the old slot with the same block
// id. It does nothing unless both lists hold the same ids in order.
func carrySlots(old, fresh []*html.Node) bool {
	if len(old) != len(fresh) {
		return false
	}
	for i := range old {
		if attrOr(old[i], entities.BlockIDAttr, "") != attrOr(fresh[i], entities.BlockIDAttr, "") {
			return false
		}
	}
	for i, slot := range old {
		detachNode(slot)
		fresh[i].Parent.InsertBefore(slot, fresh[i])
		detachNode(fresh[i])
	}
	return true
}

// HTML serializes the current tree
func (t *RenderTree) HTML() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return renderChildren(t.root)
}

// SlotHTML serializes the content of one slot
func (t *RenderTree) SlotHTML(blockID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := t.slot(blockID)
	if slot == nil {
		return "", false
	}
	return renderChildren(slot), true
}

// SlotAttr reads a state attribute of a slot
func (t *RenderTree) SlotAttr(blockID, key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return getAttr(t.slot(blockID), key)
}

// Count returns how many nodes match a CSS selector
func (t *RenderTree) Count(selector string) (int, error) {
	sel, err := compileSelector(selector)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(sel.MatchAll(t.root)), nil
}

// SlotIDs lists the block ids of all slots in document order
func (t *RenderTree) SlotIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	slots := slotSelector.MatchAll(t.root)
	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, attrOr(s, entities.BlockIDAttr, ""))
	}
	return ids
}

// ZoomScale returns the stored zoom scale of a slot
func (t *RenderTree) ZoomScale(blockID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return readScale(t.slot(blockID))
}

// WithZoom runs fn against the zoom controller attached to a slot. It
// reports false when no diagram is mounted there.
func (t *RenderTree) WithZoom(blockID string, fn func(z *Zoom)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	za, ok := t.zooms[t.slot(blockID)]
	if !ok {
		return false
	}
	fn(za.zoom)
	return true
}

// slot finds a slot by block id. Caller holds t.mu.
func (t *RenderTree) slot(blockID string) *html.Node {
	for _, s := range slotSelector.MatchAll(t.root) {
		if v, _ := getAttr(s, entities.BlockIDAttr); v == blockID {
			return s
		}
	}
	return nil
}

// attachZoom replaces the controller of a slot. Caller holds t.mu.
func (t *RenderTree) attachZoom(slot, wrapper, vector *html.Node, opts ZoomOptions) {
	t.detachZoom(slot)
	z, detach := Attach(slot, wrapper, vector, opts)
	t.zooms[slot] = &zoomAttachment{zoom: z, detach: detach}
}

// detachZoom drops the controller of a slot. Caller holds t.mu.
func (t *RenderTree) detachZoom(slot *html.Node) {
	if za, ok := t.zooms[slot]; ok {
		za.detach()
		delete(t.zooms, slot)
	}
}

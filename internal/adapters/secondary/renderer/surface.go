package renderer

import (
	"errors"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// Surface is the preview as seen by the domain: one render tree driven by
// one orchestrator, plus the interactions a client can send back
type Surface struct {
	tree      *RenderTree
	orch      *Orchestrator
	downloads *DownloadRegistry
}

// NewSurface creates a surface over a fresh tree
func NewSurface(orch *Orchestrator, downloads *DownloadRegistry) *Surface {
	return &Surface{
		tree:      NewRenderTree(),
		orch:      orch,
		downloads: downloads,
	}
}

// Tree exposes the render tree
func (s *Surface) Tree() *RenderTree { return s.tree }

// Mount loads freshly extracted HTML. Slots survive when the block ids
// are unchanged, so unchanged blocks are skipped by the next reconcile.
func (s *Surface) Mount(markup string) error {
	var reset func()
	if s.downloads != nil {
		reset = s.downloads.Reset
	}
	_, err := s.tree.Update(markup, reset)
	return err
}

// Reconcile runs an incremental pass
func (s *Surface) Reconcile(blocks []entities.Block, theme entities.Theme) ports.RenderPass {
	return s.orch.Reconcile(s.tree, blocks, theme)
}

// Refresh runs a full re-render pass
func (s *Surface) Refresh(blocks []entities.Block, theme entities.Theme) ports.RenderPass {
	return s.orch.Refresh(s.tree, blocks, theme)
}

// Snapshot serializes the tree
func (s *Surface) Snapshot() string {
	return s.tree.HTML()
}

// Wheel zooms a diagram. ok is false when no diagram is mounted in the slot.
func (s *Surface) Wheel(blockID string, ev WheelEvent) (scale float64, preventDefault, ok bool) {
	ok = s.tree.WithZoom(blockID, func(z *Zoom) {
		preventDefault = z.Wheel(ev)
		scale = z.Scale()
	})
	return scale, preventDefault, ok
}

// ResetZoom handles a double click on a diagram
func (s *Surface) ResetZoom(blockID string) (float64, bool) {
	var scale float64
	ok := s.tree.WithZoom(blockID, func(z *Zoom) {
		z.DoubleClick()
		scale = z.Scale()
	})
	return scale, ok
}

// PanEvent is one pointer event of a drag over a diagram
type PanEvent struct {
	Phase  string  `json:"phase"` // down, move, up, leave
	Button int     `json:"button"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Pan feeds a pointer event to a diagram and returns its scroll offset
func (s *Surface) Pan(blockID string, ev PanEvent) (left, top float64, ok bool) {
	ok = s.tree.WithZoom(blockID, func(z *Zoom) {
		switch ev.Phase {
		case "down":
			z.PointerDown(ev.Button, ev.X, ev.Y)
		case "move":
			z.PointerMove(ev.X, ev.Y)
		case "up":
			z.PointerUp()
		case "leave":
			z.PointerLeave()
		}
		left, top = z.ScrollOffset()
	})
	return left, top, ok
}

// Download activates the download affordance of a diagram
func (s *Surface) Download(blockID string) (entities.DownloadRequest, error) {
	if s.downloads == nil {
		return entities.DownloadRequest{}, errors.New("downloads are not enabled")
	}
	return s.downloads.Activate(blockID)
}

var _ ports.PreviewRenderer = (*Surface)(nil)

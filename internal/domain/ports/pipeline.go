package ports

import (
	"context"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// MarkdownConverter turns placeholder-substituted markdown into HTML.
// Raw HTML is passed through unsanitized.
type MarkdownConverter interface {
	ToHTML(src []byte) (string, error)
}

// BlockExtractor runs one extraction pass. It never fails; conversion
// errors degrade to a fixed error paragraph.
type BlockExtractor interface {
	Extract(markdown string) entities.ProcessedMarkdown
}

// DiagramEngine renders diagram source to svg markup.
// id must be unique per call.
type DiagramEngine interface {
	Render(ctx context.Context, id, source string, theme entities.Theme) (string, error)
}

// Highlighter produces a themed, language-tagged code view
type Highlighter interface {
	Highlight(code, language string, theme entities.Theme) (string, error)
}

// DownloadRequester opens the download flow for a diagram
type DownloadRequester interface {
	RequestDownload(req entities.DownloadRequest)
}

// RenderPass is the handle of one reconciliation pass. Callers are free
// to ignore it; waiting is only needed by batch callers and tests.
type RenderPass interface {
	Token() uint64
	Wait(ctx context.Context) error
}

// PreviewRenderer owns the render tree the preview service drives
type PreviewRenderer interface {
	// Mount replaces the tree with freshly extracted HTML. Slots whose block
	// ids match the mounted ones in order are kept.
	Mount(html string) error
	Reconcile(blocks []entities.Block, theme entities.Theme) RenderPass
	Refresh(blocks []entities.Block, theme entities.Theme) RenderPass
	// Snapshot serializes the current tree
	Snapshot() string
}

// DiagramRasterizer converts svg markup into a raster data URL
type DiagramRasterizer interface {
	ToRaster(ctx context.Context, svg string, opts entities.RasterOptions) (string, error)
}

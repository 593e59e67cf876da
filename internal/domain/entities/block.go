package entities

import "fmt"

// Placeholder markup emitted by the extractor in place of each fenced block.
const (
	PlaceholderClass = "code-block-placeholder"
	BlockIDAttr      = "data-block-id"
)

// Language tags assigned by the extractor
const (
	LanguageMermaid = "mermaid"
	LanguageText    = "text"
)

// Block is one fenced region extracted from markdown source.
// Blocks are produced fresh on every extraction pass and never mutated.
type Block struct {
	// ID is unique within one extraction pass ("block-1", "block-2", ...)
	ID string `json:"id"`

	// Language is the fence tag, "text" for untagged or downgraded fences
	Language string `json:"language"`

	// Code is the trimmed fence body, or the whole fence for downgraded diagrams
	Code string `json:"code"`

	// IsDiagram is fixed at extraction time
	IsDiagram bool `json:"is_diagram"`
}

// BlockID formats the id for the n-th block of a pass.
func BlockID(n int) string {
	return fmt.Sprintf("block-%d", n)
}

// PlaceholderHTML returns the slot marker for a block id.
func PlaceholderHTML(id string) string {
	return fmt.Sprintf(`<div class="%s" %s="%s"></div>`, PlaceholderClass, BlockIDAttr, id)
}

// ProcessedMarkdown is the result of one extraction pass
type ProcessedMarkdown struct {
	HTML   string  `json:"html"`
	Blocks []Block `json:"blocks"`

	// Title comes from frontmatter or the first level-one heading
	Title string `json:"title,omitempty"`
}

// Diagrams returns the diagram blocks in document order.
func (p ProcessedMarkdown) Diagrams() []Block {
	var out []Block
	for _, b := range p.Blocks {
		if b.IsDiagram {
			out = append(out, b)
		}
	}
	return out
}

// Find returns the block with the given id.
func (p ProcessedMarkdown) Find(id string) (Block, bool) {
	for _, b := range p.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

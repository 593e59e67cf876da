package entities

// DiagramOutcome is the tagged result of one diagram render:
// either DiagramSuccess or DiagramFailure.
type DiagramOutcome interface {
	isDiagramOutcome()
}

// DiagramSuccess carries the vector markup returned by the engine
type DiagramSuccess struct {
	Markup string
}

// DiagramFailure carries everything the inline error panel shows
type DiagramFailure struct {
	Diagnosis string
	RawSource string
	RawError  string
}

func (DiagramSuccess) isDiagramOutcome() {}
func (DiagramFailure) isDiagramOutcome() {}

// DownloadRequest is handed to the download flow when a user activates
// the download affordance of a rendered diagram.
type DownloadRequest struct {
	BlockID string `json:"block_id"`
	Code    string `json:"code"`
	Title   string `json:"title"`
}

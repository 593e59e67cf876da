package renderer

import (
	"fmt"
	"sync"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// DownloadRegistry keeps the payload behind each rendered diagram's
// download button
type DownloadRegistry struct {
	mu        sync.RWMutex
	requests  map[string]entities.DownloadRequest
	requester ports.DownloadRequester
}

// NewDownloadRegistry creates a registry that hands activated payloads
// to requester
func NewDownloadRegistry(requester ports.DownloadRequester) *DownloadRegistry {
	return &DownloadRegistry{
		requests:  make(map[string]entities.DownloadRequest),
		requester: requester,
	}
}

// SetRequester replaces the requester activated payloads are handed to
func (d *DownloadRegistry) SetRequester(requester ports.DownloadRequester) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requester = requester
}

// Register stores the payload for a block, replacing an older one
func (d *DownloadRegistry) Register(req entities.DownloadRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests[req.BlockID] = req
}

// Remove forgets the payload for a block
func (d *DownloadRegistry) Remove(blockID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.requests, blockID)
}

// Get returns the payload for a block
func (d *DownloadRegistry) Get(blockID string) (entities.DownloadRequest, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	req, ok := d.requests[blockID]
	return req, ok
}

// Activate opens the download flow for a block
func (d *DownloadRegistry) Activate(blockID string) (entities.DownloadRequest, error) {
	d.mu.RLock()
	req, ok := d.requests[blockID]
	requester := d.requester
	d.mu.RUnlock()

	if !ok {
		return entities.DownloadRequest{}, fmt.Errorf("no rendered diagram for block %q", blockID)
	}
	if requester != nil {
		requester.RequestDownload(req)
	}
	return req, nil
}

// Reset forgets every payload
func (d *DownloadRegistry) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = make(map[string]entities.DownloadRequest)
}

package services

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// DownloadNotifier answers an activated download button by telling the
// clients where to fetch the diagram
type DownloadNotifier struct {
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewDownloadNotifier creates a download requester publishing to notifier
func NewDownloadNotifier(notifier ports.Notifier, logger *slog.Logger) *DownloadNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadNotifier{
		notifier: notifier,
		logger:   logger.With("service", "downloads"),
	}
}

// DownloadURL is the endpoint serving a diagram of the current preview
func DownloadURL(blockID string) string {
	return fmt.Sprintf("/api/diagrams/%s/download", url.PathEscape(blockID))
}

// RequestDownload implements ports.DownloadRequester
func (d *DownloadNotifier) RequestDownload(req entities.DownloadRequest) {
	if d.notifier == nil {
		return
	}
	presets := make([]string, 0, len(entities.DownloadPresets))
	for _, p := range entities.DownloadPresets {
		presets = append(presets, p.Name)
	}

	err := d.notifier.NotifyClients(ports.UpdateEvent{
		Type:      ports.EventTypeDownload,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"block_id": req.BlockID,
			"title":    req.Title,
			"url":      DownloadURL(req.BlockID),
			"formats":  []entities.ImageFormat{entities.FormatPNG, entities.FormatJPG, entities.FormatSVG},
			"presets":  presets,
		},
	})
	if err != nil {
		d.logger.Warn("failed to publish download request", "block_id", req.BlockID, "error", err)
	}
}

var _ ports.DownloadRequester = (*DownloadNotifier)(nil)

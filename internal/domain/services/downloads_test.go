package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

func TestDownloadURL(t *testing.T) {
	assert.Equal(t, "/api/diagrams/block-3/download", DownloadURL("block-3"))
	assert.Equal(t, "/api/diagrams/a%2Fb/download", DownloadURL("a/b"))
}

func TestDownloadNotifier_RequestDownload(t *testing.T) {
	t.Run("publishes the download location", func(t *testing.T) {
		notifier := &recordingNotifier{}
		d := NewDownloadNotifier(notifier, nil)

		d.RequestDownload(entities.DownloadRequest{BlockID: "block-2", Code: "graph TD", Title: "Diagram block-2"})

		require.Equal(t, []string{ports.EventTypeDownload}, notifier.types())
		data := notifier.last().Data.(map[string]interface{})
		assert.Equal(t, "block-2", data["block_id"])
		assert.Equal(t, "Diagram block-2", data["title"])
		assert.Equal(t, "/api/diagrams/block-2/download", data["url"])
		assert.Len(t, data["presets"], len(entities.DownloadPresets))
	})

	t.Run("notify failure is not fatal", func(t *testing.T) {
		notifier := &MockNotifier{}
		notifier.On("NotifyClients", eventOfType(ports.EventTypeDownload)).Return(assert.AnError)

		d := NewDownloadNotifier(notifier, nil)
		assert.NotPanics(t, func() {
			d.RequestDownload(entities.DownloadRequest{BlockID: "block-1"})
		})
		notifier.AssertExpectations(t)
	})

	t.Run("no notifier", func(t *testing.T) {
		d := NewDownloadNotifier(nil, nil)
		assert.NotPanics(t, func() {
			d.RequestDownload(entities.DownloadRequest{BlockID: "block-1"})
		})
	})
}

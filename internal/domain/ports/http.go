package ports

import (
	"context"
	"time"
)

// HTTPServer defines the interface for the HTTP server
type HTTPServer interface {
	Start(ctx context.Context, port int, host string) error
	Stop(ctx context.Context) error
	NotifyClients(event UpdateEvent) error
	IsRunning() bool
}

// Notifier is the part of the server the domain services publish through
type Notifier interface {
	NotifyClients(event UpdateEvent) error
}

// UpdateEvent represents an event sent to WebSocket clients
type UpdateEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// UpdateEvent types
const (
	EventTypeConnected = "connected"
	EventTypePreview   = "preview"
	EventTypeSlot      = "slot"
	EventTypeZoom      = "zoom"
	EventTypePan       = "pan"
	EventTypeTheme     = "theme"
	EventTypeDownload  = "download"
	EventTypeDocument  = "document"
	EventTypeError     = "error"
)

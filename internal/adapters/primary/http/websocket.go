package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// content messages carry a whole document
	maxMessageSize = 1 << 20
)

// Client message types
const (
	MessageZoom      = "zoom"
	MessageZoomReset = "zoom_reset"
	MessagePan       = "pan"
	MessageTheme     = "theme"
	MessageContent   = "content"
	MessageDownload  = "download"
)

// createUpgrader creates a WebSocket upgrader with proper origin validation
func (s *Server) createUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return s.isValidOrigin(r)
		},
	}
}

// WebSocketClient represents a WebSocket client connection
type WebSocketClient struct {
	id      string
	conn    *websocket.Conn
	send    chan ports.UpdateEvent
	manager *ConnectionManager
	server  *Server
	logger  *slog.Logger
}

// ClientMessage is one interaction sent by the preview page
type ClientMessage struct {
	Type    string `json:"type"`
	BlockID string `json:"block_id,omitempty"`

	// zoom
	DeltaY float64 `json:"delta_y,omitempty"`
	Ctrl   bool    `json:"ctrl,omitempty"`
	Meta   bool    `json:"meta,omitempty"`

	// pan
	Phase  string  `json:"phase,omitempty"`
	Button int     `json:"button,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`

	// theme, content
	Theme      string `json:"theme,omitempty"`
	Content    string `json:"content,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.createUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordWebSocketConnection()
	}

	s.mu.RLock()
	manager := s.connMgr
	s.mu.RUnlock()

	id := uuid.New().String()
	client := &WebSocketClient{
		id:      id,
		conn:    conn,
		send:    make(chan ports.UpdateEvent, 256),
		manager: manager,
		server:  s,
		logger:  s.logger.With("client", id),
	}

	// queue the greeting before the client becomes visible to broadcasts
	client.send <- ports.UpdateEvent{
		Type:      ports.EventTypeConnected,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"client_id": client.id,
			"theme":     s.deps.Preview.Theme().String(),
		},
	}

	manager.RegisterConnection(&Connection{ID: client.id, Send: client.send})

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *WebSocketClient) readPump() {
	defer func() {
		c.manager.Unregister(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket connection error", "error", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("failed to parse client message", "error", err)
			continue
		}
		c.server.handleClientMessage(msg)
	}
}

// writePump pumps messages to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage applies one page interaction. The render tree is
// shared, so its effects are broadcast to every page.
func (s *Server) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageZoom:
		scale, _, ok := s.deps.Interactions.Wheel(msg.BlockID, renderer.WheelEvent{
			DeltaY: msg.DeltaY, Ctrl: msg.Ctrl, Meta: msg.Meta,
		})
		if ok {
			s.broadcast(ports.EventTypeZoom, map[string]interface{}{"block_id": msg.BlockID, "scale": scale})
		}

	case MessageZoomReset:
		if scale, ok := s.deps.Interactions.ResetZoom(msg.BlockID); ok {
			s.broadcast(ports.EventTypeZoom, map[string]interface{}{"block_id": msg.BlockID, "scale": scale})
		}

	case MessagePan:
		left, top, ok := s.deps.Interactions.Pan(msg.BlockID, renderer.PanEvent{
			Phase: msg.Phase, Button: msg.Button, X: msg.X, Y: msg.Y,
		})
		if ok && msg.Phase == "move" {
			s.broadcast(ports.EventTypePan, map[string]interface{}{
				"block_id": msg.BlockID, "scroll_left": left, "scroll_top": top,
			})
		}

	case MessageTheme:
		theme, err := entities.ParseTheme(msg.Theme)
		if err != nil {
			s.logger.Warn("ignoring theme message", "error", err)
			return
		}
		if _, err := s.deps.Preview.OnThemeChanged(theme); err != nil {
			s.logger.Error("theme change failed", "error", err)
		}

	case MessageContent:
		if _, err := s.applyContent(ContentRequest{Content: msg.Content, DocumentID: msg.DocumentID}); err != nil {
			s.logger.Error("content update failed", "error", err)
		}

	case MessageDownload:
		// the download requester publishes where to fetch the file
		if _, err := s.deps.Interactions.Download(msg.BlockID); err != nil {
			s.logger.Warn("download request failed", "block_id", msg.BlockID, "error", err)
		}

	default:
		s.logger.Debug("unknown client message", "type", msg.Type)
	}
}

func (s *Server) broadcast(eventType string, data interface{}) {
	_ = s.NotifyClients(ports.UpdateEvent{Type: eventType, Timestamp: time.Now(), Data: data})
}

// isValidOrigin validates WebSocket connection origins based on environment
func (s *Server) isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// same-origin requests carry no header
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		s.logger.Warn("WebSocket connection rejected: invalid origin URL", "origin", origin, "error", err)
		return false
	}

	// a page served by this server is always allowed
	if originURL.Host == r.Host {
		return true
	}

	if s.config.Server.IsDevelopment() {
		return isDevelopmentOrigin(originURL)
	}
	return s.isProductionOrigin(originURL)
}

// isDevelopmentOrigin allows loopback and private network hosts
func isDevelopmentOrigin(originURL *url.URL) bool {
	hostname := originURL.Hostname()

	switch hostname {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return true
	}

	return strings.HasPrefix(hostname, "192.168.") ||
		strings.HasPrefix(hostname, "10.") ||
		isPrivateClassB(hostname)
}

// isProductionOrigin validates origins against the configured whitelist
func (s *Server) isProductionOrigin(originURL *url.URL) bool {
	for _, allowedOrigin := range s.config.Server.GetCORSOrigins() {
		if originURL.String() == allowedOrigin {
			return true
		}

		// wildcard subdomains (*.example.com)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*")
			if strings.HasSuffix(originURL.Hostname(), domain) {
				return true
			}
		}
	}

	s.logger.Warn("WebSocket connection rejected: origin not in whitelist",
		"origin", originURL.String(),
		"allowed_origins", s.config.Server.GetCORSOrigins())
	return false
}

// isPrivateClassB checks for 172.16.0.0 to 172.31.255.255 range
func isPrivateClassB(hostname string) bool {
	if !strings.HasPrefix(hostname, "172.") {
		return false
	}

	parts := strings.Split(hostname, ".")
	if len(parts) < 2 {
		return false
	}

	switch parts[1] {
	case "16", "17", "18", "19", "20", "21", "22", "23", "24", "25", "26", "27", "28", "29", "30", "31":
		return true
	default:
		return false
	}
}

// Package http serves the live preview page, its JSON API and the
// websocket that mirrors the render tree into the browser.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/export"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
	"github.com/fredcamaral/mdlive/internal/domain/services"
)

// Preview is the preview service as the server drives it
type Preview interface {
	State() services.PreviewState
	Content() string
	Theme() entities.Theme
	Block(id string) (entities.Block, bool)
	OnContentChanged(text string) (ports.RenderPass, error)
	OnThemeChanged(theme entities.Theme) (ports.RenderPass, error)
	Refresh() (ports.RenderPass, error)
}

// Interactions are the pointer gestures a page sends back for diagrams
type Interactions interface {
	Wheel(blockID string, ev renderer.WheelEvent) (scale float64, preventDefault, ok bool)
	ResetZoom(blockID string) (float64, bool)
	Pan(blockID string, ev renderer.PanEvent) (left, top float64, ok bool)
	Download(blockID string) (entities.DownloadRequest, error)
}

// Documents is the stored-document API
type Documents interface {
	Create(ctx context.Context, title, content string) (*entities.Document, error)
	Get(ctx context.Context, id string) (*entities.Document, error)
	Load(ctx context.Context, id string) (*entities.Document, error)
	Update(ctx context.Context, id string, upd entities.DocumentUpdate) (*entities.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entities.Document, error)
	Recent(ctx context.Context) ([]entities.RecentFile, error)
	Current(ctx context.Context) (*entities.Document, error)
	Autosave(id, content string)
}

// DiagramDownloader encodes a single diagram
type DiagramDownloader interface {
	Download(ctx context.Context, code string, opts entities.RasterOptions) (export.Artifact, error)
}

// DocumentExporter renders a whole document
type DocumentExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Metrics receives request counters and reports the health endpoint body
type Metrics interface {
	RecordHTTPRequest()
	RecordWebSocketConnection()
	RecordExport(d time.Duration, err error)
	HealthStatus() map[string]interface{}
}

// PageRenderer renders the preview page shell
type PageRenderer interface {
	Render(data renderer.PageData) ([]byte, error)
}

// Dependencies are the collaborators behind the routes. Documents,
// Downloader and Exporter may be nil; their routes then answer 503.
// Metrics may be nil.
type Dependencies struct {
	Preview      Preview
	Interactions Interactions
	Documents    Documents
	Downloader   DiagramDownloader
	Exporter     DocumentExporter
	Pages        PageRenderer
	Metrics      Metrics
}

// Server implements ports.HTTPServer
type Server struct {
	server  *http.Server
	connMgr *ConnectionManager
	deps    Dependencies
	config  *entities.Config
	logger  *slog.Logger
	handler http.Handler
	addr    string
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool
}

var _ ports.HTTPServer = (*Server)(nil)

// NewServer creates a new HTTP server
// config must not be nil
func NewServer(config *entities.Config, deps Dependencies, logger *slog.Logger) *Server {
	if config == nil {
		panic("server config cannot be nil - provide a valid Config")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:    deps,
		config:  config,
		connMgr: NewConnectionManager(),
		logger:  logger.With("component", "http"),
	}
	s.handler = s.setupRoutes()
	return s
}

// Handler returns the complete handler chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts listening on host:port. Port 0 picks a free port; Addr
// reports the result.
func (s *Server) Start(ctx context.Context, port int, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return fmt.Errorf("listening on %s:%d: %w", host, port, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.connMgr = NewConnectionManager()
	go s.connMgr.Run(runCtx)

	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.Server.GetReadTimeout(),
		WriteTimeout: s.config.Server.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}
	s.addr = ln.Addr().String()
	s.running = true

	go func(srv *http.Server) {
		s.logger.Info("HTTP server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}(s.server)

	return nil
}

// Addr returns the listen address of a running server
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.New("server not running")
	}

	s.connMgr.CloseAll()
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.GetShutdownTimeout())
	defer cancel()

	s.running = false
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// NotifyClients sends an update event to all connected clients
func (s *Server) NotifyClients(event ports.UpdateEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return errors.New("server not running")
	}

	s.connMgr.Broadcast(event)
	return nil
}

// BroadcastSlot publishes one committed slot write; it is the
// orchestrator's slot listener
func (s *Server) BroadcastSlot(update renderer.SlotUpdate) {
	if !s.IsRunning() {
		return
	}
	_ = s.NotifyClients(ports.UpdateEvent{
		Type:      ports.EventTypeSlot,
		Timestamp: time.Now(),
		Data:      update,
	})
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/preview", s.handlePreviewState).Methods(http.MethodGet)
	api.HandleFunc("/preview/content", s.handleSetContent).Methods(http.MethodPut)
	api.HandleFunc("/preview/theme", s.handleSetTheme).Methods(http.MethodPut)
	api.HandleFunc("/preview/refresh", s.handleRefresh).Methods(http.MethodPost)

	api.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents", s.handleCreateDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/recent", s.handleRecentDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/current", s.handleCurrentDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleUpdateDocument).Methods(http.MethodPatch)
	api.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/open", s.handleOpenDocument).Methods(http.MethodPost)

	api.HandleFunc("/diagrams/{id}/download", s.handleDiagramDownload).Methods(http.MethodGet)
	api.HandleFunc("/presets", s.handlePresets).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, errors.New("no route for "+r.URL.Path), http.StatusNotFound)
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, errors.New(r.Method+" not allowed on "+r.URL.Path), http.StatusMethodNotAllowed)
	})
	// subrouters answer mismatches themselves
	for _, rt := range []*mux.Router{router, api} {
		rt.NotFoundHandler = notFound
		rt.MethodNotAllowedHandler = notAllowed
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.Server.GetCORSOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Export-Warnings"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	// metrics -> security -> rate limiting -> logging -> recovery
	var handler http.Handler = c.Handler(router)
	if s.deps.Metrics != nil {
		handler = metricsMiddleware(handler, s.deps.Metrics)
	}
	handler = securityHeadersMiddleware(handler)
	handler = rateLimitMiddleware(handler)
	handler = createLoggingMiddleware(handler, s.logger)
	handler = createRecoveryMiddleware(handler, s.logger)

	return handler
}

// connectedClients returns the number of open preview pages
func (s *Server) connectedClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connMgr.Count()
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/export"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// maxBodySize bounds JSON request bodies; documents travel inside them
const maxBodySize = 8 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ContentRequest replaces the previewed markdown
type ContentRequest struct {
	Content    string `json:"content"`
	DocumentID string `json:"document_id,omitempty"`
}

// ThemeRequest switches the preview theme
type ThemeRequest struct {
	Theme string `json:"theme"`
}

// PassResponse reports the render pass a change started
type PassResponse struct {
	Token uint64 `json:"token"`
}

// CreateDocumentRequest creates a stored document
type CreateDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ExportRequest exports the previewed document
type ExportRequest struct {
	Format string `json:"format"`
	Theme  string `json:"theme,omitempty"`
	Title  string `json:"title,omitempty"`
}

// handlePage serves the preview page with the current tree inlined
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	state := s.deps.Preview.State()

	page, err := s.deps.Pages.Render(renderer.PageData{
		Title:      state.Title,
		Theme:      state.Theme,
		Body:       state.HTML,
		PanEnabled: s.config.Preview.PanEnabled,
	})
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		s.logger.Error("failed to write page response", "error", err)
	}
}

func (s *Server) handlePreviewState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Preview.State())
}

func (s *Server) handleSetContent(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}

	pass, err := s.applyContent(req)
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusAccepted, PassResponse{Token: pass.Token()})
}

// applyContent updates the preview and schedules an autosave when the
// content belongs to a stored document
func (s *Server) applyContent(req ContentRequest) (ports.RenderPass, error) {
	pass, err := s.deps.Preview.OnContentChanged(req.Content)
	if err != nil {
		return nil, err
	}
	if req.DocumentID != "" && s.deps.Documents != nil {
		s.deps.Documents.Autosave(req.DocumentID, req.Content)
	}
	return pass, nil
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}
	theme, err := entities.ParseTheme(req.Theme)
	if err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}

	pass, err := s.deps.Preview.OnThemeChanged(theme)
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusAccepted, PassResponse{Token: pass.Token()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	pass, err := s.deps.Preview.Refresh()
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusAccepted, PassResponse{Token: pass.Token()})
}

func (s *Server) documents(w http.ResponseWriter) (Documents, bool) {
	if s.deps.Documents == nil {
		s.handleError(w, errors.New("document store disabled"), http.StatusServiceUnavailable)
		return nil, false
	}
	return s.deps.Documents, true
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	list, err := docs.List(r.Context())
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	if list == nil {
		list = []*entities.Document{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	var req CreateDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}
	doc, err := docs.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleRecentDocuments(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	recent, err := docs.Recent(r.Context())
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	if recent == nil {
		recent = []entities.RecentFile{}
	}
	s.writeJSON(w, http.StatusOK, recent)
}

func (s *Server) handleCurrentDocument(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	doc, err := docs.Current(r.Context())
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	if doc == nil {
		s.handleError(w, errors.New("no current document"), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	doc, err := docs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	var upd entities.DocumentUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}
	doc, err := docs.Update(r.Context(), mux.Vars(r)["id"], upd)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	if err := docs.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOpenDocument loads a stored document into the preview
func (s *Server) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.documents(w)
	if !ok {
		return
	}
	doc, err := docs.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	if _, err := s.deps.Preview.OnContentChanged(doc.Content); err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	_ = s.NotifyClients(ports.UpdateEvent{
		Type:      ports.EventTypeDocument,
		Timestamp: time.Now(),
		Data:      map[string]string{"id": doc.ID, "title": doc.Title},
	})
	s.writeJSON(w, http.StatusOK, doc)
}

// handleDiagramDownload renders one diagram of the current preview.
// Query: format (png, jpg, svg), preset, width, height, quality,
// transparent, theme.
func (s *Server) handleDiagramDownload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Downloader == nil {
		s.handleError(w, errors.New("diagram downloads disabled"), http.StatusServiceUnavailable)
		return
	}

	blockID := mux.Vars(r)["id"]
	block, ok := s.deps.Preview.Block(blockID)
	if !ok || !block.IsDiagram {
		s.handleError(w, fmt.Errorf("no diagram %q in the preview", blockID), http.StatusNotFound)
		return
	}

	opts, err := s.rasterOptions(r)
	if err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}

	artifact, err := s.deps.Downloader.Download(r.Context(), block.Code, opts)
	if err != nil {
		s.handleExportError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		s.logger.Error("failed to write diagram", "error", err)
	}
}

// rasterOptions builds download options from config defaults, then the
// preset, then explicit query values
func (s *Server) rasterOptions(r *http.Request) (entities.RasterOptions, error) {
	q := r.URL.Query()
	opts := entities.RasterOptions{
		Width:       s.config.Export.Width,
		Height:      s.config.Export.Height,
		Theme:       s.deps.Preview.Theme(),
		Transparent: s.config.Export.Transparent,
	}

	format, err := entities.ParseImageFormat(q.Get("format"))
	if err != nil {
		return opts, err
	}
	opts.Format = format

	if name := q.Get("preset"); name != "" {
		preset, ok := entities.FindPreset(name)
		if !ok {
			return opts, fmt.Errorf("unknown preset %q", name)
		}
		opts = preset.Apply(opts)
	}

	if v := q.Get("theme"); v != "" {
		theme, err := entities.ParseTheme(v)
		if err != nil {
			return opts, err
		}
		opts.Theme = theme
	}
	if v := q.Get("transparent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid transparent value %q", v)
		}
		opts.Transparent = b
	}
	if opts.Width, err = intParam(q.Get("width"), opts.Width); err != nil {
		return opts, err
	}
	if opts.Height, err = intParam(q.Get("height"), opts.Height); err != nil {
		return opts, err
	}
	if v := q.Get("quality"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return opts, fmt.Errorf("quality must be in (0, 1], got %q", v)
		}
		opts.Quality = f
	}
	return opts, nil
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 10000 {
		return 0, fmt.Errorf("dimension must be between 1 and 10000, got %q", v)
	}
	return n, nil
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, entities.DownloadPresets)
}

// handleHealth reports liveness plus the collected counters
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"healthy": true}
	if s.deps.Metrics != nil {
		status = s.deps.Metrics.HealthStatus()
	}
	status["clients"] = s.connectedClients()
	s.writeJSON(w, http.StatusOK, status)
}

// handleExport exports the previewed document as html or pdf
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		s.handleError(w, errors.New("export disabled"), http.StatusServiceUnavailable)
		return
	}

	var req ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}
	theme := s.deps.Preview.Theme()
	if req.Theme != "" {
		if theme, err = entities.ParseTheme(req.Theme); err != nil {
			s.handleError(w, err, http.StatusBadRequest)
			return
		}
	}
	title := req.Title
	if title == "" {
		title = s.deps.Preview.State().Title
	}
	if title == "" {
		title = entities.DefaultDocumentTitle
	}

	start := time.Now()
	result, err := s.deps.Exporter.Export(r.Context(), export.Request{
		Title:   title,
		Content: s.deps.Preview.Content(),
		Theme:   theme,
		Format:  format,
	})
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordExport(time.Since(start), err)
	}
	if err != nil {
		s.handleExportError(w, err)
		return
	}

	filename := export.Slugify(title)
	if filename == "" {
		filename = "document"
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+"."+string(format)))
	w.Header().Set("X-Export-Warnings", strconv.Itoa(len(result.Warnings)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		s.logger.Error("failed to write export", "error", err)
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ports.ErrDocumentNotFound) {
		s.handleError(w, err, http.StatusNotFound)
		return
	}
	s.handleError(w, err, http.StatusInternalServerError)
}

// handleExportError maps an ExportError type to a status code
func (s *Server) handleExportError(w http.ResponseWriter, err error) {
	var exportErr *export.ExportError
	if !errors.As(err, &exportErr) {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}
	switch exportErr.Type {
	case export.ErrorTypeValidation:
		s.handleError(w, err, http.StatusBadRequest)
	case export.ErrorTypeDiagram, export.ErrorTypeRaster:
		s.handleError(w, err, http.StatusUnprocessableEntity)
	case export.ErrorTypeCancelled:
		s.handleError(w, err, http.StatusRequestTimeout)
	default:
		s.handleError(w, err, http.StatusInternalServerError)
	}
}

// handleError handles error responses with sanitized messages
func (s *Server) handleError(w http.ResponseWriter, err error, status int) {
	// never echo err itself back to the client
	var message string
	switch status {
	case http.StatusBadRequest:
		message = "Invalid request"
	case http.StatusNotFound:
		message = "Resource not found"
	case http.StatusMethodNotAllowed:
		message = "Method not allowed"
	case http.StatusRequestTimeout:
		message = "Request cancelled"
	case http.StatusUnprocessableEntity:
		message = "Diagram could not be rendered"
	case http.StatusTooManyRequests:
		message = "Too many requests"
	case http.StatusServiceUnavailable:
		message = "Service not available"
	case http.StatusInternalServerError:
		message = "Internal server error"
	default:
		message = "An error occurred"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("HTTP error", "status", status, "error", err)
	} else {
		s.logger.Debug("HTTP error", "status", status, "error", err)
	}

	s.writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Time:    time.Now(),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

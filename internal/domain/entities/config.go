package entities

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Preview   PreviewConfig   `toml:"preview"`
	Mermaid   MermaidConfig   `toml:"mermaid"`
	Highlight HighlightConfig `toml:"highlight"`
	Export    ExportConfig    `toml:"export"`
	Watcher   WatcherConfig   `toml:"watcher"`
	Store     StoreConfig     `toml:"store"`
	Browser   BrowserConfig   `toml:"browser"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Preview.Validate(); err != nil {
		return fmt.Errorf("preview config: %w", err)
	}

	if err := c.Mermaid.Validate(); err != nil {
		return fmt.Errorf("mermaid config: %w", err)
	}

	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export config: %w", err)
	}

	if err := c.Watcher.Validate(); err != nil {
		return fmt.Errorf("watcher config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ReadTimeout     int      `toml:"read_timeout"`
	WriteTimeout    int      `toml:"write_timeout"`
	ShutdownTimeout int      `toml:"shutdown_timeout"`
	Environment     string   `toml:"environment"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// Validate validates server configuration
func (s ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return errors.New("port must be between 0 and 65535")
	}

	if s.Host != "" {
		if ip := net.ParseIP(s.Host); ip == nil {
			if _, err := net.LookupHost(s.Host); err != nil {
				return fmt.Errorf("invalid host: %w", err)
			}
		}
	}

	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.ShutdownTimeout < 0 {
		return errors.New("timeouts must be non-negative")
	}

	for _, origin := range s.CORSOrigins {
		if origin == "" {
			return errors.New("CORS origin cannot be empty")
		}
		if origin == "*" {
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid CORS origin format: %s (must start with http:// or https://)", origin)
		}
	}

	return nil
}

// GetReadTimeout returns the read timeout as a duration
func (s ServerConfig) GetReadTimeout() time.Duration {
	if s.ReadTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a duration
func (s ServerConfig) GetWriteTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetShutdownTimeout returns the shutdown timeout as a duration
func (s ServerConfig) GetShutdownTimeout() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetCORSOrigins returns CORS origins with defaults if empty
func (s ServerConfig) GetCORSOrigins() []string {
	if len(s.CORSOrigins) == 0 {
		return []string{
			"http://localhost:4400",
			"http://127.0.0.1:4400",
		}
	}
	return s.CORSOrigins
}

// IsDevelopment returns true if the server is running in development mode
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development" || s.Environment == ""
}

// Default artifact patterns: leaked container tags and attribute syntax
var DefaultArtifactPatterns = []string{
	`(?i)</?(div|span)[^>]*>`,
	`(?i)class=`,
	`(?i)data-block-id=`,
}

// PreviewConfig controls the live preview pipeline
type PreviewConfig struct {
	Theme             string   `toml:"theme"`
	PanEnabled        bool     `toml:"pan_enabled"`
	ZoomMin           float64  `toml:"zoom_min"`
	ZoomMax           float64  `toml:"zoom_max"`
	WheelRate         float64  `toml:"wheel_rate"`
	WheelModifierRate float64  `toml:"wheel_modifier_rate"`
	ArtifactPatterns  []string `toml:"artifact_patterns"`
}

// Validate validates preview configuration
func (p PreviewConfig) Validate() error {
	if p.Theme != "" {
		if _, err := ParseTheme(p.Theme); err != nil {
			return err
		}
	}

	if p.ZoomMin < 0 || p.ZoomMax < 0 {
		return errors.New("zoom bounds must be non-negative")
	}

	if p.ZoomMin > 0 && p.ZoomMax > 0 && p.ZoomMin >= p.ZoomMax {
		return fmt.Errorf("zoom_min (%g) must be below zoom_max (%g)", p.ZoomMin, p.ZoomMax)
	}

	if p.WheelRate < 0 || p.WheelModifierRate < 0 {
		return errors.New("wheel rates must be non-negative")
	}

	for _, pattern := range p.ArtifactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid artifact pattern %q: %w", pattern, err)
		}
	}

	return nil
}

// GetTheme returns the configured theme, light when unset
func (p PreviewConfig) GetTheme() Theme {
	if t, err := ParseTheme(p.Theme); err == nil {
		return t
	}
	return ThemeLight
}

// GetZoomBounds returns the clamp range for diagram zoom
func (p PreviewConfig) GetZoomBounds() (float64, float64) {
	lo, hi := p.ZoomMin, p.ZoomMax
	if lo <= 0 {
		lo = 0.25
	}
	if hi <= 0 {
		hi = 4.0
	}
	return lo, hi
}

// GetWheelRates returns the plain and modifier wheel zoom rates
func (p PreviewConfig) GetWheelRates() (float64, float64) {
	fine, coarse := p.WheelRate, p.WheelModifierRate
	if fine <= 0 {
		fine = 0.0015
	}
	if coarse <= 0 {
		coarse = 0.0025
	}
	return fine, coarse
}

// GetArtifactPatterns returns the classifier artifact set
func (p PreviewConfig) GetArtifactPatterns() []string {
	if len(p.ArtifactPatterns) == 0 {
		return DefaultArtifactPatterns
	}
	return p.ArtifactPatterns
}

// MermaidConfig configures the diagram engine
type MermaidConfig struct {
	CLIPath        string `toml:"cli_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxConcurrent  int    `toml:"max_concurrent"`
	CacheSizeMB    int    `toml:"cache_size_mb"`
	CacheTTL       int    `toml:"cache_ttl_seconds"`
	FontFamily     string `toml:"font_family"`
	FontSize       int    `toml:"font_size"`
}

// Validate validates mermaid configuration
func (m MermaidConfig) Validate() error {
	if m.TimeoutSeconds < 0 {
		return errors.New("timeout must be non-negative")
	}
	if m.MaxConcurrent < 0 {
		return errors.New("max concurrent renders must be non-negative")
	}
	if m.CacheSizeMB < 0 || m.CacheTTL < 0 {
		return errors.New("cache settings must be non-negative")
	}
	if m.FontSize < 0 {
		return errors.New("font size must be non-negative")
	}
	return nil
}

// GetCLIPath returns the mmdc executable
func (m MermaidConfig) GetCLIPath() string {
	if m.CLIPath == "" {
		return "mmdc"
	}
	return m.CLIPath
}

// GetTimeout returns the per-render timeout
func (m MermaidConfig) GetTimeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// GetMaxConcurrent returns the render concurrency limit
func (m MermaidConfig) GetMaxConcurrent() int {
	if m.MaxConcurrent <= 0 {
		return 4
	}
	return m.MaxConcurrent
}

// GetCacheSize returns the svg cache size in bytes
func (m MermaidConfig) GetCacheSize() int64 {
	if m.CacheSizeMB <= 0 {
		return 32 * 1024 * 1024
	}
	return int64(m.CacheSizeMB) * 1024 * 1024
}

// GetCacheTTL returns how long a rendered svg stays cached
func (m MermaidConfig) GetCacheTTL() time.Duration {
	if m.CacheTTL <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(m.CacheTTL) * time.Second
}

// GetFontFamily returns the diagram font family
func (m MermaidConfig) GetFontFamily() string {
	if m.FontFamily == "" {
		return "monospace"
	}
	return m.FontFamily
}

// GetFontSize returns the diagram font size
func (m MermaidConfig) GetFontSize() int {
	if m.FontSize <= 0 {
		return 14
	}
	return m.FontSize
}

// HighlightConfig selects the code highlighting palettes
type HighlightConfig struct {
	LightStyle  string `toml:"light_style"`
	DarkStyle   string `toml:"dark_style"`
	LineNumbers bool   `toml:"line_numbers"`
}

// StyleFor returns the chroma style name for a theme
func (h HighlightConfig) StyleFor(t Theme) string {
	if t.IsDark() {
		if h.DarkStyle == "" {
			return "github-dark"
		}
		return h.DarkStyle
	}
	if h.LightStyle == "" {
		return "github"
	}
	return h.LightStyle
}

// ExportConfig contains defaults for document and diagram exports
type ExportConfig struct {
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	Transparent  bool   `toml:"transparent"`
	SanitizeHTML bool   `toml:"sanitize_html"`
	OutputDir    string `toml:"output_dir"`
}

// Validate validates export configuration
func (e ExportConfig) Validate() error {
	if e.Width < 0 || e.Height < 0 {
		return errors.New("export dimensions must be non-negative")
	}
	if e.Width > 10000 || e.Height > 10000 {
		return errors.New("export dimensions must not exceed 10000 pixels")
	}
	return nil
}

// GetSize returns the default raster size
func (e ExportConfig) GetSize() (int, int) {
	w, h := e.Width, e.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}
	return w, h
}

// WatcherConfig contains file watcher configuration
type WatcherConfig struct {
	IntervalMs int `toml:"interval_ms"`
	DebounceMs int `toml:"debounce_ms"`
}

// Validate validates watcher configuration
func (w WatcherConfig) Validate() error {
	if w.IntervalMs != 0 && w.IntervalMs < 50 {
		return errors.New("watcher interval must be at least 50ms")
	}

	if w.DebounceMs < 0 {
		return errors.New("debounce time must be non-negative")
	}

	return nil
}

// GetInterval returns the watcher interval as a duration
func (w WatcherConfig) GetInterval() time.Duration {
	if w.IntervalMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(w.IntervalMs) * time.Millisecond
}

// GetDebounce returns the debounce time as a duration
func (w WatcherConfig) GetDebounce() time.Duration {
	if w.DebounceMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// StoreConfig locates the document database
type StoreConfig struct {
	Path       string `toml:"path"`
	AutosaveMs int    `toml:"autosave_ms"`
}

// GetAutosaveDelay returns how long edits settle before they are saved
func (s StoreConfig) GetAutosaveDelay() time.Duration {
	if s.AutosaveMs <= 0 {
		return time.Second
	}
	return time.Duration(s.AutosaveMs) * time.Millisecond
}

// GetPath returns the database path, under the user config dir by default
func (s StoreConfig) GetPath() string {
	if s.Path != "" {
		return s.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "mdlive.db"
	}
	return filepath.Join(home, ".config", "mdlive", "documents.db")
}

// BrowserConfig contains browser launch configuration
type BrowserConfig struct {
	AutoOpen bool   `toml:"auto_open"`
	Browser  string `toml:"browser"`
}

// LogLevel represents logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`       // debug, info, warn, error
	Verbose    bool   `toml:"verbose"`     // Enable verbose logging
	JSONFormat bool   `toml:"json_format"` // Output logs in JSON format
	File       string `toml:"file"`        // Log to file (optional)
}

// Validate validates logging configuration
func (l LoggingConfig) Validate() error {
	switch LogLevel(l.Level) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	case "":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", l.Level)
	}

	if l.File != "" {
		if !filepath.IsAbs(l.File) {
			return errors.New("log file path must be absolute")
		}

		dir := filepath.Dir(l.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("log file directory does not exist: %s", dir)
		}
	}

	return nil
}

// GetLevel returns the log level with default
func (l LoggingConfig) GetLevel() LogLevel {
	if l.Level == "" {
		return LogLevelInfo
	}
	return LogLevel(l.Level)
}

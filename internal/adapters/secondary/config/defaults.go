package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// DefaultPort is the preview server port when nothing else is configured
const DefaultPort = 4400

// GetDefaultConfig returns the default configuration with environment overrides
func GetDefaultConfig() *entities.Config {
	config := &entities.Config{
		Server: entities.ServerConfig{
			Host:            getEnvOrDefault("MDLIVE_HOST", "localhost"),
			Port:            getEnvIntOrDefault("MDLIVE_PORT", DefaultPort),
			ReadTimeout:     getEnvIntOrDefault("MDLIVE_READ_TIMEOUT", 30),
			WriteTimeout:    getEnvIntOrDefault("MDLIVE_WRITE_TIMEOUT", 30),
			ShutdownTimeout: getEnvIntOrDefault("MDLIVE_SHUTDOWN_TIMEOUT", 5),
			CORSOrigins: getEnvSliceOrDefault("MDLIVE_CORS_ORIGINS", []string{
				"http://localhost:4400",
				"http://127.0.0.1:4400",
			}),
		},
		Preview: entities.PreviewConfig{
			Theme:             getEnvOrDefault("MDLIVE_THEME", string(entities.ThemeLight)),
			PanEnabled:        getEnvBoolOrDefault("MDLIVE_PAN", true),
			ZoomMin:           0.25,
			ZoomMax:           4.0,
			WheelRate:         0.0015,
			WheelModifierRate: 0.0025,
			ArtifactPatterns:  append([]string(nil), entities.DefaultArtifactPatterns...),
		},
		Mermaid: entities.MermaidConfig{
			CLIPath:        getEnvOrDefault("MDLIVE_MMDC", "mmdc"),
			TimeoutSeconds: getEnvIntOrDefault("MDLIVE_MERMAID_TIMEOUT", 20),
			MaxConcurrent:  getEnvIntOrDefault("MDLIVE_MERMAID_CONCURRENCY", 4),
			CacheSizeMB:    32,
			CacheTTL:       1800,
			FontFamily:     "monospace",
			FontSize:       14,
		},
		Highlight: entities.HighlightConfig{
			LightStyle: "github",
			DarkStyle:  "github-dark",
		},
		Export: entities.ExportConfig{
			Width:        800,
			Height:       600,
			SanitizeHTML: true,
			OutputDir:    getEnvOrDefault("MDLIVE_EXPORT_DIR", ""),
		},
		Watcher: entities.WatcherConfig{
			IntervalMs: 200,
			DebounceMs: 300,
		},
		Store: entities.StoreConfig{
			Path:       getEnvOrDefault("MDLIVE_DB", ""),
			AutosaveMs: 1000,
		},
		Browser: entities.BrowserConfig{
			AutoOpen: true,
			Browser:  "default",
		},
		Logging: entities.LoggingConfig{
			Level:      getEnvOrDefault("MDLIVE_LOG_LEVEL", "info"),
			Verbose:    getEnvBoolOrDefault("MDLIVE_LOG_VERBOSE", false),
			JSONFormat: getEnvBoolOrDefault("MDLIVE_LOG_JSON", false),
			File:       getEnvOrDefault("MDLIVE_LOG_FILE", ""),
		},
	}

	applyEnvironmentOverrides(config)

	return config
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvSliceOrDefault returns a comma separated environment variable or default
func getEnvSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if result := splitList(value); len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// applyEnvironmentOverrides applies settings that have no dedicated default lookup
func applyEnvironmentOverrides(config *entities.Config) {
	if autoOpen := os.Getenv("MDLIVE_BROWSER_AUTO_OPEN"); autoOpen != "" {
		if boolValue, err := strconv.ParseBool(autoOpen); err == nil {
			config.Browser.AutoOpen = boolValue
		}
	}

	if browser := os.Getenv("MDLIVE_BROWSER"); browser != "" {
		config.Browser.Browser = browser
	}

	if env := os.Getenv("MDLIVE_ENV"); env != "" {
		config.Server.Environment = env
	}
}

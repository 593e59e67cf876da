package config

import (
	"os"
	"strconv"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// ConfigMerger implements the ConfigMerger interface
type ConfigMerger struct{}

// NewConfigMerger creates a new configuration merger
func NewConfigMerger() *ConfigMerger {
	return &ConfigMerger{}
}

// Merge merges multiple configurations with later configs taking precedence
func (m *ConfigMerger) Merge(configs ...*entities.Config) *entities.Config {
	if len(configs) == 0 {
		return GetDefaultConfig()
	}

	result := deepCopy(configs[0])
	if result == nil {
		result = GetDefaultConfig()
	}

	for i := 1; i < len(configs); i++ {
		if configs[i] != nil {
			m.mergeInto(result, configs[i])
		}
	}

	return result
}

// ApplyOverrides applies command line overrides to a configuration
func (m *ConfigMerger) ApplyOverrides(config *entities.Config, o ports.ConfigOverrides) *entities.Config {
	result := deepCopy(config)

	if o.Port > 0 {
		result.Server.Port = o.Port
	}
	if o.Host != "" {
		result.Server.Host = o.Host
	}
	if o.Theme != "" {
		result.Preview.Theme = o.Theme
	}
	if o.NoBrowser != nil {
		result.Browser.AutoOpen = !*o.NoBrowser
	}
	if o.PanZoom != nil {
		result.Preview.PanEnabled = *o.PanZoom
	}
	if o.LogLevel != "" {
		result.Logging.Level = o.LogLevel
	}
	if o.StorePath != "" {
		result.Store.Path = o.StorePath
	}
	if o.MermaidCL != "" {
		result.Mermaid.CLIPath = o.MermaidCL
	}

	return result
}

// ApplyEnvVars applies environment variable overrides to a configuration
func (m *ConfigMerger) ApplyEnvVars(config *entities.Config) *entities.Config {
	result := deepCopy(config)

	if host := os.Getenv("MDLIVE_HOST"); host != "" {
		result.Server.Host = host
	}

	if portStr := os.Getenv("MDLIVE_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			result.Server.Port = port
		}
	}

	if theme := os.Getenv("MDLIVE_THEME"); theme != "" {
		result.Preview.Theme = theme
	}

	if pan := os.Getenv("MDLIVE_PAN"); pan != "" {
		if enabled, err := strconv.ParseBool(pan); err == nil {
			result.Preview.PanEnabled = enabled
		}
	}

	if noBrowserStr := os.Getenv("MDLIVE_NO_BROWSER"); noBrowserStr != "" {
		if noBrowser, err := strconv.ParseBool(noBrowserStr); err == nil {
			result.Browser.AutoOpen = !noBrowser
		}
	}

	if browser := os.Getenv("MDLIVE_BROWSER"); browser != "" {
		result.Browser.Browser = browser
	}

	if cli := os.Getenv("MDLIVE_MMDC"); cli != "" {
		result.Mermaid.CLIPath = cli
	}

	if timeoutStr := os.Getenv("MDLIVE_MERMAID_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			result.Mermaid.TimeoutSeconds = timeout
		}
	}

	if intervalStr := os.Getenv("MDLIVE_WATCH_INTERVAL"); intervalStr != "" {
		if interval, err := strconv.Atoi(intervalStr); err == nil && interval > 0 {
			result.Watcher.IntervalMs = interval
		}
	}

	if debounceStr := os.Getenv("MDLIVE_WATCH_DEBOUNCE"); debounceStr != "" {
		if debounce, err := strconv.Atoi(debounceStr); err == nil && debounce >= 0 {
			result.Watcher.DebounceMs = debounce
		}
	}

	if db := os.Getenv("MDLIVE_DB"); db != "" {
		result.Store.Path = db
	}

	if level := os.Getenv("MDLIVE_LOG_LEVEL"); level != "" {
		result.Logging.Level = level
	}

	return result
}

// mergeInto merges source configuration into target configuration.
// TOML cannot distinguish false from unset, so booleans only override
// when they differ from the default value.
func (m *ConfigMerger) mergeInto(target, source *entities.Config) {
	defaults := GetDefaultConfig()

	// Server
	setInt(&target.Server.Port, source.Server.Port)
	setString(&target.Server.Host, source.Server.Host)
	setInt(&target.Server.ReadTimeout, source.Server.ReadTimeout)
	setInt(&target.Server.WriteTimeout, source.Server.WriteTimeout)
	setInt(&target.Server.ShutdownTimeout, source.Server.ShutdownTimeout)
	setString(&target.Server.Environment, source.Server.Environment)
	setStrings(&target.Server.CORSOrigins, source.Server.CORSOrigins)

	// Preview
	setString(&target.Preview.Theme, source.Preview.Theme)
	setBool(&target.Preview.PanEnabled, source.Preview.PanEnabled, defaults.Preview.PanEnabled)
	setFloat(&target.Preview.ZoomMin, source.Preview.ZoomMin)
	setFloat(&target.Preview.ZoomMax, source.Preview.ZoomMax)
	setFloat(&target.Preview.WheelRate, source.Preview.WheelRate)
	setFloat(&target.Preview.WheelModifierRate, source.Preview.WheelModifierRate)
	setStrings(&target.Preview.ArtifactPatterns, source.Preview.ArtifactPatterns)

	// Mermaid
	setString(&target.Mermaid.CLIPath, source.Mermaid.CLIPath)
	setInt(&target.Mermaid.TimeoutSeconds, source.Mermaid.TimeoutSeconds)
	setInt(&target.Mermaid.MaxConcurrent, source.Mermaid.MaxConcurrent)
	setInt(&target.Mermaid.CacheSizeMB, source.Mermaid.CacheSizeMB)
	setInt(&target.Mermaid.CacheTTL, source.Mermaid.CacheTTL)
	setString(&target.Mermaid.FontFamily, source.Mermaid.FontFamily)
	setInt(&target.Mermaid.FontSize, source.Mermaid.FontSize)

	// Highlight
	setString(&target.Highlight.LightStyle, source.Highlight.LightStyle)
	setString(&target.Highlight.DarkStyle, source.Highlight.DarkStyle)
	setBool(&target.Highlight.LineNumbers, source.Highlight.LineNumbers, defaults.Highlight.LineNumbers)

	// Export
	setInt(&target.Export.Width, source.Export.Width)
	setInt(&target.Export.Height, source.Export.Height)
	setBool(&target.Export.Transparent, source.Export.Transparent, defaults.Export.Transparent)
	setBool(&target.Export.SanitizeHTML, source.Export.SanitizeHTML, defaults.Export.SanitizeHTML)
	setString(&target.Export.OutputDir, source.Export.OutputDir)

	// Watcher
	setInt(&target.Watcher.IntervalMs, source.Watcher.IntervalMs)
	setInt(&target.Watcher.DebounceMs, source.Watcher.DebounceMs)

	// Store
	setString(&target.Store.Path, source.Store.Path)
	setInt(&target.Store.AutosaveMs, source.Store.AutosaveMs)

	// Browser
	setString(&target.Browser.Browser, source.Browser.Browser)
	setBool(&target.Browser.AutoOpen, source.Browser.AutoOpen, defaults.Browser.AutoOpen)

	// Logging
	setString(&target.Logging.Level, source.Logging.Level)
	setBool(&target.Logging.Verbose, source.Logging.Verbose, defaults.Logging.Verbose)
	setBool(&target.Logging.JSONFormat, source.Logging.JSONFormat, defaults.Logging.JSONFormat)
	setString(&target.Logging.File, source.Logging.File)
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func setInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

func setFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

func setBool(dst *bool, src, def bool) {
	if src != def {
		*dst = src
	}
}

func setStrings(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

// deepCopy creates a deep copy of a configuration
func deepCopy(src *entities.Config) *entities.Config {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Server.CORSOrigins = cloneStrings(src.Server.CORSOrigins)
	dst.Preview.ArtifactPatterns = cloneStrings(src.Preview.ArtifactPatterns)

	return &dst
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

var _ ports.ConfigMerger = (*ConfigMerger)(nil)

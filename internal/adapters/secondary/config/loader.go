package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// LocalConfigName is looked up in the working directory
const LocalConfigName = "mdlive.toml"

// TOMLLoader implements the ConfigLoader interface using TOML files
type TOMLLoader struct {
	globalPath string
	localName  string
	logger     *slog.Logger
}

// NewTOMLLoader creates a new TOML configuration loader
func NewTOMLLoader() *TOMLLoader {
	homeDir, _ := os.UserHomeDir()

	return &TOMLLoader{
		globalPath: filepath.Join(homeDir, ".config", "mdlive", "config.toml"),
		localName:  LocalConfigName,
		logger:     slog.Default().With("component", "config_loader"),
	}
}

// WithGlobalPath points the loader at another global config file
func (l *TOMLLoader) WithGlobalPath(path string) *TOMLLoader {
	if path != "" {
		l.globalPath = path
	}
	return l
}

// LoadGlobal loads the global configuration file, creating it on first run
func (l *TOMLLoader) LoadGlobal(ctx context.Context) (*entities.Config, error) {
	if _, err := os.Stat(l.globalPath); os.IsNotExist(err) {
		if err := l.CreateDefaults(ctx, l.globalPath); err != nil {
			return nil, fmt.Errorf("creating defaults: %w", err)
		}
		l.log().Info("created global config", "path", l.globalPath)
	}

	return l.loadConfig(l.globalPath)
}

// LoadLocal loads mdlive.toml from dir
func (l *TOMLLoader) LoadLocal(ctx context.Context, dir string) (*entities.Config, error) {
	localPath := l.GetLocalPath(dir)

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		return nil, nil // optional
	}

	return l.loadConfig(localPath)
}

// CreateDefaults writes the default configuration to path
func (l *TOMLLoader) CreateDefaults(ctx context.Context, path string) error {
	if err := l.ensureConfigDir(path); err != nil {
		return err
	}

	file, err := os.Create(path) // #nosec G304 - path is the controlled global config path
	if err != nil {
		return fmt.Errorf("creating config file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	encoder := toml.NewEncoder(file)
	encoder.Indent = "  "

	if err := encoder.Encode(GetDefaultConfig()); err != nil {
		return fmt.Errorf("encoding config to %s: %w", path, err)
	}

	return nil
}

// GetGlobalPath returns the path to the global configuration file
func (l *TOMLLoader) GetGlobalPath() string {
	return l.globalPath
}

// GetLocalPath returns the path to the local configuration file for a directory
func (l *TOMLLoader) GetLocalPath(dir string) string {
	return filepath.Join(dir, l.localName)
}

// loadConfig decodes and validates a configuration file. Unknown keys are
// reported but do not fail the load.
func (l *TOMLLoader) loadConfig(path string) (*entities.Config, error) {
	config := booleanDefaults()
	meta, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML from %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		l.log().Warn("ignoring unknown config keys", "path", path, "keys", keys)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return &config, nil
}

// booleanDefaults returns an otherwise empty config whose booleans hold
// their defaults, so keys absent from a file never read as false.
func booleanDefaults() entities.Config {
	d := GetDefaultConfig()
	var c entities.Config
	c.Preview.PanEnabled = d.Preview.PanEnabled
	c.Highlight.LineNumbers = d.Highlight.LineNumbers
	c.Export.Transparent = d.Export.Transparent
	c.Export.SanitizeHTML = d.Export.SanitizeHTML
	c.Browser.AutoOpen = d.Browser.AutoOpen
	c.Logging.Verbose = d.Logging.Verbose
	c.Logging.JSONFormat = d.Logging.JSONFormat
	return c
}

func (l *TOMLLoader) ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

func (l *TOMLLoader) log() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

var _ ports.ConfigLoader = (*TOMLLoader)(nil)

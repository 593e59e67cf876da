package ports

import (
	"context"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// ConfigLoader reads configuration files
type ConfigLoader interface {
	// LoadGlobal loads the per-user configuration, creating it on first run
	LoadGlobal(ctx context.Context) (*entities.Config, error)

	// LoadLocal loads mdlive.toml from dir; a missing file yields nil, nil
	LoadLocal(ctx context.Context, dir string) (*entities.Config, error)

	// CreateDefaults writes the default configuration to path
	CreateDefaults(ctx context.Context, path string) error

	GetGlobalPath() string
	GetLocalPath(dir string) string
}

// ConfigOverrides carries command line values. Zero values mean "not set".
type ConfigOverrides struct {
	Port      int
	Host      string
	Theme     string
	NoBrowser *bool
	PanZoom   *bool
	LogLevel  string
	StorePath string
	MermaidCL string
}

// ConfigMerger layers configurations on top of each other
type ConfigMerger interface {
	// Merge merges configurations with later ones taking precedence
	Merge(configs ...*entities.Config) *entities.Config

	// ApplyOverrides applies command line overrides
	ApplyOverrides(config *entities.Config, overrides ConfigOverrides) *entities.Config

	// ApplyEnvVars applies MDLIVE_* environment overrides
	ApplyEnvVars(config *entities.Config) *entities.Config
}

// ConfigService resolves the effective configuration
type ConfigService interface {
	LoadConfig(ctx context.Context, workingDir string, overrides ConfigOverrides) (*entities.Config, error)
	GetDefaultConfig() *entities.Config
	ValidateConfig(config *entities.Config) error
	CreateGlobalConfig(ctx context.Context) error
}

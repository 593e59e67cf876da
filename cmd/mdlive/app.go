package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/config"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/export"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/mermaid"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/monitoring"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/parser"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/store"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
	"github.com/fredcamaral/mdlive/internal/domain/services"
)

// loadConfig resolves the effective configuration for a command running
// against workingDir
func loadConfig(cmd *cobra.Command, workingDir string, overrides ports.ConfigOverrides) (*entities.Config, error) {
	svc := services.NewConfigService(globalLoader(cmd), config.NewConfigMerger())

	cfg, err := svc.LoadConfig(cmd.Context(), workingDir, overrides)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and the logger every subcommand needs.
// The returned func closes the log file.
func setup(cmd *cobra.Command, file string, overrides ports.ConfigOverrides) (*entities.Config, *slog.Logger, func(), error) {
	dir := "."
	if file != "" {
		dir = filepath.Dir(file)
	}
	cfg, err := loadConfig(cmd, dir, overrides)
	if err != nil {
		return nil, nil, nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, closeLog, err := newLogger(cfg.Logging, verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, func() { _ = closeLog() }, nil
}

// pipeline is the preview stack shared by the subcommands
type pipeline struct {
	config     *entities.Config
	logger     *slog.Logger
	engine     *mermaid.Engine
	monitor    *monitoring.Monitor
	extractor  *parser.Extractor
	downloads  *renderer.DownloadRegistry
	orch       *renderer.Orchestrator
	surface    *renderer.Surface
	preview    *services.PreviewService
	exports    *export.Service
	downloader *export.Downloader
}

// newPipeline wires extraction, rendering and export over one diagram
// engine. Without mmdc the preview still works and diagrams show their
// error panel.
func newPipeline(ctx context.Context, cfg *entities.Config, logger *slog.Logger) (*pipeline, error) {
	engine, err := mermaid.NewEngine(cfg.Mermaid, logger)
	if errors.Is(err, mermaid.ErrCLINotFound) {
		logger.Warn("mermaid CLI not available; diagrams will not render",
			"cli", cfg.Mermaid.GetCLIPath(), "hint", "npm install -g @mermaid-js/mermaid-cli")
		engine = mermaid.NewEngineWithCompiler(cfg.Mermaid, mermaid.Unavailable(err), logger)
	} else if err != nil {
		return nil, fmt.Errorf("creating diagram engine: %w", err)
	}

	monitor := monitoring.NewMonitor(engine)
	diagrams := monitor.Instrument(engine)

	classifier, err := parser.NewClassifier(cfg.Preview.GetArtifactPatterns()...)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	extractor := parser.NewExtractor(parser.NewGoldmarkConverter(), classifier, logger)

	downloads := renderer.NewDownloadRegistry(nil)
	highlighter := renderer.NewLazyHighlighter(func() ports.Highlighter {
		return renderer.NewChromaHighlighter(cfg.Highlight)
	})
	orch := renderer.NewOrchestrator(
		renderer.NewDiagramRenderer(diagrams, downloads, logger),
		highlighter,
		renderer.OrchestratorOptions{Context: ctx, Zoom: zoomOptions(cfg.Preview), Logger: logger},
	)
	surface := renderer.NewSurface(orch, downloads)

	exports := export.NewService(diagrams, cfg, logger)

	return &pipeline{
		config:     cfg,
		logger:     logger,
		engine:     engine,
		monitor:    monitor,
		extractor:  extractor,
		downloads:  downloads,
		orch:       orch,
		surface:    surface,
		preview:    services.NewPreviewService(extractor, surface, cfg.Preview.GetTheme(), logger),
		exports:    exports,
		downloader: export.NewDownloader(diagrams, exports.Rasterizer(), logger),
	}, nil
}

func (p *pipeline) Close() error {
	p.monitor.Stop()
	return p.engine.Close()
}

func zoomOptions(cfg entities.PreviewConfig) renderer.ZoomOptions {
	lo, hi := cfg.GetZoomBounds()
	rate, modifierRate := cfg.GetWheelRates()
	return renderer.ZoomOptions{
		Min:          lo,
		Max:          hi,
		Rate:         rate,
		ModifierRate: modifierRate,
		PanEnabled:   cfg.PanEnabled,
	}
}

// readInput reads file, or stdin when file is empty or "-"
func readInput(cmd *cobra.Command, file string) (string, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	info, err := os.Stat(file)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", file, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file: %s", file)
	}
	data, err := os.ReadFile(file) // #nosec G304 - path validated above
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-"
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func openStore(cfg *entities.Config) (*store.SQLiteStore, error) {
	s, err := store.Open(cfg.Store.GetPath())
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	return s, nil
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	httpserver "github.com/fredcamaral/mdlive/internal/adapters/primary/http"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/browser"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/adapters/secondary/watcher"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
	"github.com/fredcamaral/mdlive/internal/domain/services"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Preview a markdown file in the browser",
	Long: `Start a local server that renders the markdown file and reloads the
preview whenever the file changes. Without a file the current stored
document is shown, and documents can be opened from the page.

Example:
  mdlive serve README.md
  mdlive serve notes.md --port 8080 --no-browser --theme dark
  mdlive serve --doc 5f0c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 0, "Port to serve on (overrides config)")
	cmd.Flags().String("host", "", "Host to bind to (overrides config)")
	cmd.Flags().Bool("no-browser", false, "Don't open the browser (overrides config)")
	cmd.Flags().StringP("theme", "t", "", "Preview theme: light or dark (overrides config)")
	cmd.Flags().Bool("pan", true, "Allow panning zoomed diagrams (overrides config)")
	cmd.Flags().Bool("no-watch", false, "Render the file once instead of watching it")
	cmd.Flags().String("doc", "", "Open a stored document by id")
	cmd.Flags().String("store", "", "Document database path (overrides config)")
	cmd.Flags().String("mmdc", "", "Path to the mermaid CLI (overrides config)")
}

// serveOverrides turns explicitly set flags into config overrides
func serveOverrides(cmd *cobra.Command) ports.ConfigOverrides {
	flags := cmd.Flags()
	var o ports.ConfigOverrides
	o.Port, _ = flags.GetInt("port")
	o.Host, _ = flags.GetString("host")
	o.Theme, _ = flags.GetString("theme")
	o.StorePath, _ = flags.GetString("store")
	o.MermaidCL, _ = flags.GetString("mmdc")
	if flags.Changed("no-browser") {
		v, _ := flags.GetBool("no-browser")
		o.NoBrowser = &v
	}
	if flags.Changed("pan") {
		v, _ := flags.GetBool("pan")
		o.PanZoom = &v
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		o.LogLevel = "debug"
	}
	return o
}

func runServe(cmd *cobra.Command, args []string) error {
	file := optionalArg(args)
	cfg, logger, closeLog, err := setup(cmd, file, serveOverrides(cmd))
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	docs := services.NewDocumentService(st, cfg.Store.GetAutosaveDelay(), logger)

	pages, err := renderer.NewPageRenderer()
	if err != nil {
		return err
	}

	server := httpserver.NewServer(cfg, httpserver.Dependencies{
		Preview:      p.preview,
		Interactions: p.surface,
		Documents:    docs,
		Downloader:   p.downloader,
		Exporter:     p.exports,
		Pages:        pages,
		Metrics:      p.monitor,
	}, logger)
	p.downloads.SetRequester(services.NewDownloadNotifier(server, logger))
	p.orch.SetListener(server.BroadcastSlot)
	p.preview.SetNotifier(server)

	p.monitor.Start(ctx)

	if err := server.Start(ctx, cfg.Server.Port, cfg.Server.Host); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
		defer cancel()
		if err := docs.Close(shutdownCtx); err != nil {
			logger.Error("failed to save pending documents", "error", err)
		}
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	stopSource, err := startSource(cmd, file, p, docs, server)
	if err != nil {
		return err
	}
	defer stopSource()

	url := previewURL(server.Addr())
	fmt.Fprintf(cmd.OutOrStdout(), "Preview running at %s\n", url)

	if cfg.Browser.AutoOpen {
		if err := browser.NewLauncher(cfg.Browser.Browser).Launch(url, false); err != nil {
			logger.Warn("failed to open browser", "error", err)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// startSource feeds the preview from the watched file, a stored document
// or the current document, in that order
func startSource(cmd *cobra.Command, file string, p *pipeline, docs *services.DocumentService, notifier ports.Notifier) (func(), error) {
	ctx := cmd.Context()
	noop := func() {}

	if file != "" {
		if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
			text, err := readInput(cmd, file)
			if err != nil {
				return nil, err
			}
			_, err = p.preview.OnContentChanged(text)
			return noop, err
		}

		reload := services.NewLiveReloadService(watcher.NewFromConfig(p.config.Watcher, p.logger), p.preview, notifier, p.logger)
		if err := reload.Start(ctx, file); err != nil {
			return nil, err
		}
		return func() {
			if err := reload.Stop(); err != nil {
				p.logger.Warn("stopping file watcher", "error", err)
			}
		}, nil
	}

	if id, _ := cmd.Flags().GetString("doc"); id != "" {
		doc, err := docs.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		_, err = p.preview.OnContentChanged(doc.Content)
		return noop, err
	}

	doc, err := docs.Current(ctx)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		if _, err := p.preview.OnContentChanged(doc.Content); err != nil {
			return nil, err
		}
	}
	return noop, nil
}

// previewURL turns a listen address into a browsable URL
func previewURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}
	if n, err := strconv.Atoi(port); err == nil && n == 80 {
		return "http://" + host
	}
	return "http://" + net.JoinHostPort(host, port)
}

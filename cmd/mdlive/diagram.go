package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/export"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [file]",
	Short: "Download one mermaid diagram as an image",
	Long: `Render a single diagram of the file (or stdin) to png, jpg or svg.
--block takes the diagram's position (1 is the first diagram) or its
block id as listed by --list. Size and quality come from the export
config, then the preset, then --width/--height/--quality.

Example:
  mdlive diagram design.md --list
  mdlive diagram design.md --block 2 --preset hd --theme dark
  mdlive diagram design.md --format svg -o flow.svg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiagram,
}

func init() {
	rootCmd.AddCommand(diagramCmd)
	addDiagramFlags(diagramCmd)
}

func addDiagramFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("block", "b", "1", "Diagram position or block id")
	f.StringP("format", "f", "png", "Image format: png, jpg or svg")
	f.String("preset", "", "Size preset (see 'mdlive presets')")
	f.StringP("theme", "t", "", "Theme: light or dark (default: config)")
	f.Bool("transparent", false, "Keep the background transparent (png only)")
	f.Int("width", 0, "Target width in pixels")
	f.Int("height", 0, "Target height in pixels")
	f.Float64("quality", 0, "JPEG quality in (0, 1]")
	f.String("caption", "", "Caption drawn under the diagram")
	f.StringP("output", "o", "", "Output file (default: suggested filename)")
	f.Bool("list", false, "List the diagrams of the document")
}

func runDiagram(cmd *cobra.Command, args []string) error {
	file := optionalArg(args)
	cfg, logger, closeLog, err := setup(cmd, file, ports.ConfigOverrides{})
	if err != nil {
		return err
	}
	defer closeLog()

	text, err := readInput(cmd, file)
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	diagrams := p.extractor.Extract(text).Diagrams()
	if list, _ := cmd.Flags().GetBool("list"); list {
		return listDiagrams(cmd, diagrams)
	}

	selector, _ := cmd.Flags().GetString("block")
	block, err := selectDiagram(diagrams, selector)
	if err != nil {
		return err
	}

	opts, err := diagramOptions(cmd, cfg)
	if err != nil {
		return err
	}

	artifact, err := p.downloader.Download(cmd.Context(), block.Code, opts)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = artifact.Filename
	}
	if err := writeOutput(cmd, output, artifact.Data); err != nil {
		return err
	}
	if output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", output, len(artifact.Data))
	}
	return nil
}

// selectDiagram resolves a 1-based position or a block id
func selectDiagram(diagrams []entities.Block, selector string) (entities.Block, error) {
	if len(diagrams) == 0 {
		return entities.Block{}, fmt.Errorf("document contains no mermaid diagrams")
	}
	selector = strings.TrimSpace(selector)
	if n, err := strconv.Atoi(selector); err == nil {
		if n < 1 || n > len(diagrams) {
			return entities.Block{}, fmt.Errorf("diagram %d out of range (document has %d)", n, len(diagrams))
		}
		return diagrams[n-1], nil
	}
	for _, b := range diagrams {
		if b.ID == selector {
			return b, nil
		}
	}
	return entities.Block{}, fmt.Errorf("no diagram with block id %q", selector)
}

// diagramOptions layers config defaults, the preset and explicit flags
func diagramOptions(cmd *cobra.Command, cfg *entities.Config) (entities.RasterOptions, error) {
	flags := cmd.Flags()
	opts := entities.RasterOptions{
		Width:       cfg.Export.Width,
		Height:      cfg.Export.Height,
		Theme:       cfg.Preview.GetTheme(),
		Transparent: cfg.Export.Transparent,
	}

	formatFlag, _ := flags.GetString("format")
	format, err := entities.ParseImageFormat(formatFlag)
	if err != nil {
		return opts, err
	}
	opts.Format = format

	if name, _ := flags.GetString("preset"); name != "" {
		preset, ok := entities.FindPreset(name)
		if !ok {
			return opts, fmt.Errorf("unknown preset %q", name)
		}
		opts = preset.Apply(opts)
	}
	if v, _ := flags.GetString("theme"); v != "" {
		if opts.Theme, err = entities.ParseTheme(v); err != nil {
			return opts, err
		}
	}
	if flags.Changed("transparent") {
		opts.Transparent, _ = flags.GetBool("transparent")
	}
	if flags.Changed("width") {
		if opts.Width, _ = flags.GetInt("width"); opts.Width <= 0 || opts.Width > 10000 {
			return opts, fmt.Errorf("width must be between 1 and 10000")
		}
	}
	if flags.Changed("height") {
		if opts.Height, _ = flags.GetInt("height"); opts.Height <= 0 || opts.Height > 10000 {
			return opts, fmt.Errorf("height must be between 1 and 10000")
		}
	}
	if flags.Changed("quality") {
		if opts.Quality, _ = flags.GetFloat64("quality"); opts.Quality <= 0 || opts.Quality > 1 {
			return opts, fmt.Errorf("quality must be in (0, 1]")
		}
	}
	opts.Caption, _ = flags.GetString("caption")
	return opts, nil
}

func listDiagrams(cmd *cobra.Command, diagrams []entities.Block) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tBLOCK\tFILENAME\tFIRST LINE")
	for i, b := range diagrams {
		first, _, _ := strings.Cut(strings.TrimSpace(b.Code), "\n")
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, b.ID, export.DefaultFilename(b.Code), strings.TrimSpace(first))
	}
	return w.Flush()
}

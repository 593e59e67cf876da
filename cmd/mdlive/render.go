package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render markdown to preview HTML",
	Long: `Run one preview pass over the file (or stdin), wait for every diagram
to finish and print the resulting HTML. With --page the output is the
complete preview page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	renderCmd.Flags().StringP("theme", "t", "", "Theme: light or dark (overrides config)")
	renderCmd.Flags().Bool("page", false, "Wrap the output in the preview page")
	renderCmd.Flags().Duration("timeout", time.Minute, "Maximum time to wait for diagrams")
}

func runRender(cmd *cobra.Command, args []string) error {
	file := optionalArg(args)
	theme, _ := cmd.Flags().GetString("theme")
	cfg, logger, closeLog, err := setup(cmd, file, ports.ConfigOverrides{Theme: theme})
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

	pass, err := p.preview.OnContentChanged(text)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	waitCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := pass.Wait(waitCtx); err != nil {
		return fmt.Errorf("waiting for diagrams: %w", err)
	}

	state := p.preview.State()
	out := []byte(state.HTML)
	if page, _ := cmd.Flags().GetBool("page"); page {
		pages, err := renderer.NewPageRenderer()
		if err != nil {
			return err
		}
		out, err = pages.Render(renderer.PageData{
			Title:      state.Title,
			Theme:      state.Theme,
			Body:       state.HTML,
			PanEnabled: cfg.Preview.PanEnabled,
		})
		if err != nil {
			return err
		}
	}

	output, _ := cmd.Flags().GetString("output")
	return writeOutput(cmd, output, out)
}

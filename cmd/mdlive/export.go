package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/export"
	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export markdown to HTML or PDF",
	Long: `Export the file (or stdin) as a standalone HTML page or a PDF. Mermaid
diagrams are converted to embedded PNG images; a diagram that fails to
convert stays as source and is reported as a warning.

Example:
  mdlive export README.md --format pdf
  cat notes.md | mdlive export --format html -o notes.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("format", "f", "html", "Export format: html or pdf")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: next to the input, stdout for stdin)")
	exportCmd.Flags().StringP("theme", "t", "", "Theme: light or dark (overrides config)")
	exportCmd.Flags().String("title", "", "Document title (default: from the document)")
}

func runExport(cmd *cobra.Command, args []string) error {
	file := optionalArg(args)
	themeFlag, _ := cmd.Flags().GetString("theme")
	cfg, logger, closeLog, err := setup(cmd, file, ports.ConfigOverrides{Theme: themeFlag})
	if err != nil {
		return err
	}
	defer closeLog()

	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	text, err := readInput(cmd, file)
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		title = p.extractor.Extract(text).Title
	}
	if title == "" {
		title = titleFromFilename(file)
	}
	if title == "" {
		title = entities.DefaultDocumentTitle
	}

	result, err := p.exports.Export(cmd.Context(), export.Request{
		Title:   title,
		Content: text,
		Theme:   cfg.Preview.GetTheme(),
		Format:  format,
	})
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultExportPath(file, cfg.Export.OutputDir, format)
	}
	if err := writeOutput(cmd, output, result.Data); err != nil {
		return err
	}
	if output != "" && output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d diagram(s) to %s\n", result.Diagrams, output)
	}
	return nil
}

// defaultExportPath places the export next to the input, or in dir when
// configured. Stdin input goes to stdout.
func defaultExportPath(file, dir string, format export.Format) string {
	if file == "" || file == "-" {
		return ""
	}
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + "." + string(format)
	if dir != "" {
		return filepath.Join(dir, name)
	}
	return filepath.Join(filepath.Dir(file), name)
}

// titleFromFilename turns "release-notes_v2.md" into "Release Notes V2"
func titleFromFilename(file string) string {
	if file == "" || file == "-" {
		return ""
	}
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the diagram download presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLABEL\tSIZE\tQUALITY")
		for _, p := range entities.DownloadPresets {
			fmt.Fprintf(w, "%s\t%s\t%dx%d\t%.0f%%\n", p.Name, p.Label, p.Width, p.Height, p.Quality*100)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

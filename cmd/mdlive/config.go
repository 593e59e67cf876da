package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/config"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
	"github.com/fredcamaral/mdlive/internal/domain/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration",
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration for the current directory",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd, ".", ports.ConfigOverrides{})
				if err != nil {
					return err
				}
				enc := toml.NewEncoder(cmd.OutOrStdout())
				enc.Indent = "  "
				return enc.Encode(cfg)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the default configuration to the global config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				loader := globalLoader(cmd)
				svc := services.NewConfigService(loader, config.NewConfigMerger())
				if err := svc.CreateGlobalConfig(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", loader.GetGlobalPath())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the global and local config file locations",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				loader := globalLoader(cmd)
				fmt.Fprintf(cmd.OutOrStdout(), "global: %s\nlocal:  %s\n", loader.GetGlobalPath(), loader.GetLocalPath("."))
			},
		},
	)
}

func globalLoader(cmd *cobra.Command) *config.TOMLLoader {
	path, _ := cmd.Flags().GetString("config")
	return config.NewTOMLLoader().WithGlobalPath(path)
}

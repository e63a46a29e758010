package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ecreceive/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set the catalog URL and credentials before running ecreceive.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "spool_dir        = %s\n", cfg.Paths.SpoolDir)
			fmt.Fprintf(out, "destination_dir  = %s\n", cfg.Paths.DestinationDir)
			fmt.Fprintf(out, "checkpoint_path  = %s\n", cfg.Paths.CheckpointPath)
			fmt.Fprintf(out, "log_dir          = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "catalog_url      = %s\n", cfg.Catalog.URL)
			fmt.Fprintf(out, "catalog_username = %s\n", cfg.Catalog.Username)
			fmt.Fprintf(out, "catalog_api_key  = %s\n", maskSecret(cfg.Catalog.APIKey))
			fmt.Fprintf(out, "base_url         = %s\n", cfg.Catalog.BaseURL)
			fmt.Fprintf(out, "source           = %s\n", cfg.Catalog.Source)
			fmt.Fprintf(out, "service_backend  = %s\n", cfg.Catalog.ServiceBackend)
			fmt.Fprintf(out, "data_format      = %s\n", cfg.Catalog.DataFormat)
			fmt.Fprintf(out, "lifetime_hours   = %d\n", cfg.Catalog.LifetimeHours)
			fmt.Fprintf(out, "workers          = %d\n", cfg.Workers.Count)
			fmt.Fprintf(out, "log_format       = %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "log_level        = %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	return "********"
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igarchive/pkg/config"
	"igarchive/pkg/ui"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
		Long: `Manage igarchive configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGARCHIVE_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
	}

	cmd.AddCommand(newConfigInitCmd(global))
	cmd.AddCommand(newConfigShowCmd(global))
	cmd.AddCommand(newConfigValidateCmd(global))

	return cmd
}

func newConfigInitCmd(global *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default values",
		Long: `Write a configuration file holding every option with its default value.

The file is created as '.igarchive.yaml' in the current directory unless a
different path is given with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.configFile
			if path == "" {
				path = ".igarchive.yaml"
			}

			if _, err := os.Stat(path); err == nil && !force {
				return usageError("configuration file already exists: %s (use --force to overwrite)", path)
			}

			if err := config.DefaultConfig().Save(path); err != nil {
				return fatalError(err)
			}

			ui.PrintSuccess("Configuration file created: " + path)
			fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
			fmt.Fprintln(cmd.OutOrStdout(), "1. Run 'igarchive auth login' to store credentials")
			fmt.Fprintln(cmd.OutOrStdout(), "2. Run 'igarchive config validate' to check the configuration")
			fmt.Fprintln(cmd.OutOrStdout(), "3. Start archiving with 'igarchive fetch <username>'")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  `Show the configuration after merging every source. Credentials are masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(nil)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fatalError(fmt.Errorf("failed to format configuration: %w", err))
			}

			ui.PrintHighlight("Current Configuration")
			fmt.Fprint(cmd.OutOrStdout(), ui.Indent(string(data), "  "))
			return nil
		},
	}
}

func newConfigValidateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long:  `Load the configuration from every source and check its values.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(nil)
			if err != nil {
				return err
			}

			if !cfg.HasCredentials() {
				ui.PrintWarning("No credentials configured; 'igarchive fetch' will use stored accounts if any")
			}

			ui.PrintSuccess("Configuration is valid")

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "\nConfiguration summary:")
			fmt.Fprintf(w, "  Data directory: %s\n", cfg.Storage.DataDir)
			fmt.Fprintf(w, "  Batch size: %d\n", cfg.Fetch.BatchSize)
			fmt.Fprintf(w, "  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
			fmt.Fprintf(w, "  Max attempts: %d\n", cfg.Retry.MaxAttempts)
			fmt.Fprintf(w, "  Log level: %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"muwi-backup/internal/config"
)

var (
	initPath  string
	initForce bool
)

// configCmd prints a sample configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, check and document the configuration",
	Long: `Print a sample configuration file with every option at its default.

Examples:
  # Print the template
  muwi-backup config > ~/.muwi-backup.yaml

  # Write the template, keeping any existing file as .backup
  muwi-backup config init --force

  # Check that the configured directories are writable
  muwi-backup config check`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.GenerateTemplate()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the sample configuration to a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := initPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("cannot determine home directory: %w", err)
			}
			path = filepath.Join(home, ".muwi-backup.yaml")
		}
		if err := config.WriteTemplate(path, initForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and check local directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		result := config.Preflight(cfg)
		printer := newPrinter(cfg)
		if printer.Structured() {
			if err := printer.Emit(result); err != nil {
				return err
			}
		} else {
			for _, msg := range result.Errors {
				printer.Error(msg)
			}
			for _, msg := range result.Warnings {
				printer.Warning(msg)
			}
			for _, msg := range result.RecommendedFixes {
				printer.Info(msg)
			}
			if result.Success {
				printer.Success("Configuration is ready")
			}
		}
		if !result.Success {
			return errReported
		}
		return nil
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables read by the configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range config.ListEnvironmentVariables() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	configInitCmd.Flags().StringVar(&initPath, "path", "", "destination (default is $HOME/.muwi-backup.yaml)")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "replace an existing file")

	configCmd.AddCommand(configInitCmd, configCheckCmd, configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"muwi-backup/internal/application"
	"muwi-backup/internal/config"
	"muwi-backup/internal/display"
	apperrors "muwi-backup/internal/errors"
	"muwi-backup/internal/host"
	"muwi-backup/internal/logging"
)

var (
	cfgFile string

	verbose      bool
	quiet        bool
	logFile      string
	noColor      bool
	noIcons      bool
	outputFormat string
	theme        string
	storeDriver  string
	badgerPath   string
)

// v collects the config file, bound flags and environment.
var v = config.NewViper("")

// errReported marks a failure already shown to the user by the printer.
var errReported = errors.New("operation failed")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "muwi-backup",
	Short: "Back up, restore and schedule snapshots of the MUWI record store",
	Long: `muwi-backup creates portable JSON snapshots of every MUWI collection,
restores them (replacing or merging), runs scheduled backups with rotation,
and serves a browser download/upload endpoint.

Examples:
  # Save a snapshot into the current directory
  muwi-backup backup create

  # Keep the ten newest snapshots in a backup directory
  muwi-backup backup create --location ~/muwi-backups --max-backups 10

  # Replace the store with a snapshot
  muwi-backup backup restore --file muwi-backup-2026-02-12.json

  # Show what a backup would contain
  muwi-backup backup stats --format json

  # Run the configured schedule until interrupted
  muwi-backup schedule`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps classified failures to distinct process exit codes.
func exitCode(err error) int {
	switch apperrors.GetErrorType(err) {
	case apperrors.ErrorTypeValidation:
		return 2
	case apperrors.ErrorTypeInterruption:
		return 130
	default:
		return 1
	}
}

// userMessage prefers the user-facing text of classified application errors.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Cause != nil {
		return fmt.Sprintf("%s: %v", apperrors.FormatUserError(appErr), appErr.Cause)
	}
	return apperrors.FormatUserError(appErr)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.muwi-backup.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this file")
	flags.BoolVar(&noColor, "no-color", false, "disable color output")
	flags.BoolVar(&noIcons, "no-icons", false, "disable status icons")
	flags.StringVar(&outputFormat, "format", "table", "output format (table, json, yaml)")
	flags.StringVar(&theme, "theme", "dark", "color theme (dark, light, high-contrast, plain)")
	flags.StringVar(&storeDriver, "store", "", "record store driver (badger, mysql)")
	flags.StringVar(&badgerPath, "data-dir", "", "directory of the embedded record store")

	v.BindPFlag("logging.file", flags.Lookup("log-file"))
	v.BindPFlag("display.output_format", flags.Lookup("format"))
	v.BindPFlag("display.theme", flags.Lookup("theme"))
	v.BindPFlag("store.driver", flags.Lookup("store"))
	v.BindPFlag("store.badger.path", flags.Lookup("data-dir"))

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
}

// loadConfig merges file, environment and flags into a validated configuration
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	switch {
	case verbose:
		cfg.Logging.Level = string(logging.LogLevelVerbose)
	case quiet:
		cfg.Logging.Level = string(logging.LogLevelQuiet)
		cfg.Display.QuietMode = true
	}
	if noColor {
		cfg.Display.ColorEnabled = false
	}
	if noIcons {
		cfg.Display.UseIcons = false
	}
	cfg.Display.Writer = cmd.OutOrStdout()
	return cfg, nil
}

func newPrinter(cfg *config.Config) *display.Printer {
	return display.NewPrinter(&cfg.Display)
}

// openApp builds the application for a command. The caller must Close it.
func openApp(cmd *cobra.Command, cfg *config.Config, mode application.Mode, picker host.Picker) (*application.Application, error) {
	app, err := application.New(cmd.Context(), application.Options{
		Config: cfg,
		Mode:   mode,
		Picker: picker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

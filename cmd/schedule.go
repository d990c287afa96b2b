package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"muwi-backup/internal/application"
	"muwi-backup/internal/backup"
	"muwi-backup/internal/settings"
)

var (
	scheduleEnabled    bool
	scheduleFrequency  string
	scheduleLocation   string
	scheduleMaxBackups int
)

// scheduleCmd runs automatic backups until interrupted
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run automatic backups from the stored schedule",
	Long: `Run automatic backups from the stored schedule until SIGINT or SIGTERM.

If the last recorded backup is older than one interval, a catch-up backup runs
immediately. Each successful run records its time in the settings file.

Examples:
  muwi-backup schedule set --enabled --frequency daily --location ~/muwi-backups
  muwi-backup schedule`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored schedule",
	Args:  cobra.NoArgs,
	RunE:  runScheduleShow,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the stored schedule",
	Args:  cobra.NoArgs,
	RunE:  runScheduleSet,
}

func init() {
	scheduleSetCmd.Flags().BoolVar(&scheduleEnabled, "enabled", false, "enable automatic backups")
	scheduleSetCmd.Flags().StringVar(&scheduleFrequency, "frequency", backup.FrequencyDaily, "hourly, daily or weekly")
	scheduleSetCmd.Flags().StringVar(&scheduleLocation, "location", "", "backup directory")
	scheduleSetCmd.Flags().IntVar(&scheduleMaxBackups, "max-backups", settings.DefaultMaxBackups, "snapshots kept in the location")

	scheduleCmd.AddCommand(scheduleShowCmd, scheduleSetCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := openApp(cmd, cfg, application.ModeDesktop, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := app.HandleSignals(cmd.Context())
	defer stop()

	newPrinter(cfg).Info(fmt.Sprintf("Running automatic backups from %s, press Ctrl+C to stop", app.Settings().Path()))
	return app.RunScheduler(ctx)
}

func runScheduleShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	autoConfig, err := settings.NewStore(cfg.SettingsPath).Load()
	if err != nil {
		return err
	}
	return newPrinter(cfg).Schedule(autoConfig)
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	switch scheduleFrequency {
	case backup.FrequencyHourly, backup.FrequencyDaily, backup.FrequencyWeekly:
	default:
		return fmt.Errorf("invalid frequency '%s', must be one of: hourly, daily, weekly", scheduleFrequency)
	}
	if scheduleEnabled && scheduleLocation == "" {
		return fmt.Errorf("--location is required when enabling automatic backups")
	}

	store := settings.NewStore(cfg.SettingsPath)
	autoConfig, err := store.Load()
	if err != nil {
		return err
	}
	autoConfig.Enabled = scheduleEnabled
	autoConfig.Frequency = scheduleFrequency
	if scheduleLocation != "" {
		autoConfig.Location = scheduleLocation
	}
	autoConfig.MaxBackups = scheduleMaxBackups
	if err := store.Save(autoConfig); err != nil {
		return err
	}

	printer := newPrinter(cfg)
	printer.Success("Schedule saved to " + store.Path())
	return printer.Schedule(autoConfig)
}

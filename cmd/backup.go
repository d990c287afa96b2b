package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"muwi-backup/internal/application"
	"muwi-backup/internal/backup"
	"muwi-backup/internal/config"
	"muwi-backup/internal/host"
)

var (
	// Backup creation flags
	createLocation   string
	createOutput     string
	createMaxBackups int

	// Restore flags
	restoreFile  string
	restoreMerge bool
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, restore, validate and inspect snapshots",
	Long: `Create, restore, validate and inspect snapshots of the record store.

A snapshot is a single JSON document holding every managed collection together
with metadata (format version, creation time, record counts).`,
}

// backupCreateCmd creates a new snapshot
var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save a snapshot of every collection",
	Long: `Save a snapshot of every collection.

Without --location the snapshot is written to --output (a file, or a directory
that receives muwi-backup-YYYY-MM-DD.json). With --location it is written as
muwi-backup-<epoch-millis>.json into that directory and older snapshots beyond
--max-backups are deleted.

Examples:
  muwi-backup backup create --output ./exports
  muwi-backup backup create --location ~/muwi-backups --max-backups 5`,
	Args: cobra.NoArgs,
	RunE: runBackupCreate,
}

// backupRestoreCmd restores a snapshot file
var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a snapshot file",
	Long: `Restore a snapshot file into the record store.

By default every managed collection is cleared first and replaced by the
snapshot contents. With --merge the snapshot records are added, replacing
records with the same id.

Examples:
  muwi-backup backup restore --file muwi-backup-2026-02-12.json
  muwi-backup backup restore --file shared.json --merge`,
	Args: cobra.NoArgs,
	RunE: runBackupRestore,
}

// backupValidateCmd validates a snapshot file without touching the store
var backupValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a file is a restorable snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupValidate,
}

// backupStatsCmd prints per-collection counts
var backupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts and the estimated snapshot size",
	Args:  cobra.NoArgs,
	RunE:  runBackupStats,
}

func init() {
	backupCreateCmd.Flags().StringVar(&createLocation, "location", "", "backup directory with rotation")
	backupCreateCmd.Flags().StringVarP(&createOutput, "output", "o", ".", "file or directory for a one-off snapshot")
	backupCreateCmd.Flags().IntVar(&createMaxBackups, "max-backups", 10, "snapshots kept in --location (0 keeps all)")
	backupCreateCmd.MarkFlagsMutuallyExclusive("location", "output")

	backupRestoreCmd.Flags().StringVarP(&restoreFile, "file", "f", "", "snapshot file to restore")
	backupRestoreCmd.Flags().BoolVar(&restoreMerge, "merge", false, "add records instead of replacing the store")
	backupRestoreCmd.MarkFlagRequired("file")

	backupCmd.AddCommand(backupCreateCmd, backupRestoreCmd, backupValidateCmd, backupStatsCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := openApp(cmd, cfg, application.ModeDesktop, host.StaticPicker{SavePath: createOutput})
	if err != nil {
		return err
	}
	defer app.Close()

	var result backup.BackupResult
	if createLocation != "" {
		result = app.Service().PerformAutoBackup(cmd.Context(), createLocation, createMaxBackups)
	} else {
		result = app.Service().SaveBackupToFile(cmd.Context(), nil)
	}
	app.RecordBackup(result)
	return reportBackup(cfg, result)
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := openApp(cmd, cfg, application.ModeDesktop, host.StaticPicker{OpenPath: restoreFile})
	if err != nil {
		return err
	}
	defer app.Close()

	var result backup.RestoreResult
	if restoreMerge {
		result = app.Service().MergeBackupFromFile(cmd.Context())
	} else {
		result = app.Service().LoadBackupFromFile(cmd.Context())
	}
	return reportRestore(cfg, result)
}

func runBackupValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	envelope, err := readSnapshot(args[0])
	if perr := newPrinter(cfg).Validation(envelope, err); perr != nil {
		return perr
	}
	if err != nil {
		return errReported
	}
	return nil
}

// readSnapshot reads a file through the ingest guard and parses it.
func readSnapshot(path string) (*backup.Envelope, error) {
	content, err := host.ReadValidatedBackupFile(path)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, errors.New(backup.MsgFileUnreadable)
	}
	return backup.ParseBackupJSON(content)
}

func runBackupStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := openApp(cmd, cfg, application.ModeDesktop, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.Service().GetBackupStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to collect statistics: %w", err)
	}
	return newPrinter(cfg).Stats(stats)
}

func reportBackup(cfg *config.Config, result backup.BackupResult) error {
	if err := newPrinter(cfg).BackupResult(result); err != nil {
		return err
	}
	if !result.Success {
		return errReported
	}
	return nil
}

func reportRestore(cfg *config.Config, result backup.RestoreResult) error {
	if err := newPrinter(cfg).RestoreResult(result); err != nil {
		return err
	}
	if !result.Success {
		return errReported
	}
	return nil
}

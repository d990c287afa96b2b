package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"muwi-backup/internal/application"
	"muwi-backup/internal/backup"
)

var (
	pullOutput  string
	pullRestore bool
	pullMerge   bool
)

// mirrorCmd manages offsite copies
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "List and retrieve offsite copies of saved snapshots",
	Long: `List and retrieve offsite copies of saved snapshots.

Copies are uploaded after every successful save when mirror.enabled is set,
compressed with the configured algorithm and rotated to the same limit as
the local snapshots.`,
}

var mirrorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List offsite copies, newest first",
	Args:  cobra.NoArgs,
	RunE:  runMirrorList,
}

var mirrorPullCmd = &cobra.Command{
	Use:   "pull <name>",
	Short: "Download an offsite copy, optionally restoring it",
	Long: `Download an offsite copy and decompress it.

Examples:
  muwi-backup mirror pull muwi-backup-1770901200000.json.gz --output ./restored.json
  muwi-backup mirror pull muwi-backup-1770901200000.json.gz --restore
  muwi-backup mirror pull muwi-backup-1770901200000.json.gz --restore --merge`,
	Args: cobra.ExactArgs(1),
	RunE: runMirrorPull,
}

func init() {
	mirrorPullCmd.Flags().StringVarP(&pullOutput, "output", "o", "", "write the decompressed snapshot to this file")
	mirrorPullCmd.Flags().BoolVar(&pullRestore, "restore", false, "restore the copy into the record store")
	mirrorPullCmd.Flags().BoolVar(&pullMerge, "merge", false, "with --restore, add records instead of replacing the store")

	mirrorCmd.AddCommand(mirrorListCmd, mirrorPullCmd)
	rootCmd.AddCommand(mirrorCmd)
}

func openMirrorApp(cmd *cobra.Command) (*application.Application, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if !cfg.Mirror.Enabled {
		return nil, fmt.Errorf("mirror is not enabled, set mirror.enabled in the configuration")
	}
	return openApp(cmd, cfg, application.ModeDesktop, nil)
}

func runMirrorList(cmd *cobra.Command, args []string) error {
	app, err := openMirrorApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	objects, err := app.Mirror().List(cmd.Context())
	if err != nil {
		return err
	}
	clk := app.Service().Clock()
	return newPrinter(app.Config()).MirrorObjects(app.Mirror().Describe(), objects, clk.Now())
}

func runMirrorPull(cmd *cobra.Command, args []string) error {
	if pullMerge && !pullRestore {
		return fmt.Errorf("--merge requires --restore")
	}
	if pullOutput == "" && !pullRestore {
		return fmt.Errorf("either --output or --restore is required")
	}

	app, err := openMirrorApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	content, err := app.Mirror().Pull(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printer := newPrinter(app.Config())
	if pullOutput != "" {
		if err := os.MkdirAll(filepath.Dir(pullOutput), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(pullOutput, content, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", pullOutput, err)
		}
		printer.Success(fmt.Sprintf("Wrote %s (%s)", pullOutput, backup.FormatSize(int64(len(content)))))
	}
	if !pullRestore {
		return nil
	}

	result := app.Service().RestoreFromContent(cmd.Context(), content, !pullMerge)
	return reportRestore(app.Config(), result)
}

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muwi-backup/internal/backup"
	apperrors "muwi-backup/internal/errors"
	"muwi-backup/internal/settings"
)

// resetFlags restores every flag to its default between executions of rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

type cliEnv struct {
	dir     string
	dataDir string
	config  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("MUWI_BACKUP_SETTINGS_PATH", filepath.Join(dir, "settings.yaml"))
	t.Setenv("MUWI_BACKUP_LOG_LEVEL", "quiet")
	return &cliEnv{
		dir:     dir,
		dataDir: filepath.Join(dir, "data"),
		config:  filepath.Join(dir, "absent.yaml"),
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--config", e.config, "--data-dir", e.dataDir, "--no-color", "--no-icons"}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeSnapshot(t *testing.T, path string) {
	t.Helper()
	data := make(map[string][]backup.Record)
	for _, c := range backup.ManagedCollections() {
		data[c] = []backup.Record{}
	}
	data[backup.CollectionDrafts] = []backup.Record{{"id": "draft-1", "title": "Chapter one"}}
	data[backup.CollectionSettings] = []backup.Record{{"id": "app", "theme": "dark"}}

	content, err := backup.BackupToJSON(&backup.Envelope{
		Metadata: backup.Metadata{
			Version:      backup.BackupVersion,
			CreatedAt:    "2026-02-12T13:00:00.000Z",
			AppVersion:   "1.0.0",
			TableCount:   backup.ManagedTableCount,
			TotalRecords: 2,
		},
		Data: data,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, content, 0o600))
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "muwi-backup version dev")
}

func TestConfigCommand_PrintsTemplate(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "# muwi-backup configuration")
	assert.Contains(t, out, "driver: badger")
}

func TestBackupValidate(t *testing.T) {
	env := newCLIEnv(t)
	good := filepath.Join(env.dir, "good.json")
	writeSnapshot(t, good)

	out, err := env.run(t, "backup", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Backup file is valid")

	bad := filepath.Join(env.dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("{}"), 0o600))
	out, err = env.run(t, "backup", "validate", bad)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, backup.MsgUnsupportedFileType)

	broken := filepath.Join(env.dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{nope"), 0o600))
	out, err = env.run(t, "backup", "validate", broken)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, backup.MsgInvalidJSON)
}

func TestBackupRestoreStatsAndCreate(t *testing.T) {
	env := newCLIEnv(t)
	snapshot := filepath.Join(env.dir, "in.json")
	writeSnapshot(t, snapshot)

	out, err := env.run(t, "backup", "restore", "--file", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 2 records across 2 collections")

	out, err = env.run(t, "backup", "stats", "--format", "json")
	require.NoError(t, err)
	var stats struct {
		TotalRecords  int    `json:"totalRecords"`
		EstimatedSize string `json:"estimatedSize"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, "1000 B", stats.EstimatedSize)

	location := filepath.Join(env.dir, "rotating")
	for i := 0; i < 2; i++ {
		_, err = env.run(t, "backup", "create", "--location", location, "--max-backups", "1")
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(location)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	outDir := filepath.Join(env.dir, "exports")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	out, err = env.run(t, "backup", "create", "--output", outDir, "--format", "json")
	require.NoError(t, err)
	var result backup.BackupResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RecordCount)
	assert.FileExists(t, result.FilePath)
}

func TestBackupRestore_MissingFile(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "backup", "restore", "--file", filepath.Join(env.dir, "gone.json"))
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, backup.MsgFileUnreadable)
}

func TestScheduleSetAndShow(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "schedule", "set", "--enabled", "--frequency", "weekly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--location is required")

	_, err = env.run(t, "schedule", "set", "--frequency", "monthly")
	require.Error(t, err)

	out, err := env.run(t, "schedule", "set", "--enabled", "--frequency", "weekly",
		"--location", filepath.Join(env.dir, "auto"), "--max-backups", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Schedule saved")

	out, err = env.run(t, "schedule", "show", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "frequency: weekly")
	assert.Contains(t, out, "max_backups: 3")
}

func TestBackupCreate_RecordsLastBackup(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "schedule", "set", "--enabled", "--frequency", "daily",
		"--location", filepath.Join(env.dir, "auto"))
	require.NoError(t, err)

	store := settings.NewStore(filepath.Join(env.dir, "settings.yaml"))
	before, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, before.LastBackup)

	outDir := filepath.Join(env.dir, "exports")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	_, err = env.run(t, "backup", "create", "--output", outDir)
	require.NoError(t, err)

	after, err := store.Load()
	require.NoError(t, err)
	require.NotEmpty(t, after.LastBackup)
	_, err = time.Parse("2006-01-02T15:04:05.000Z", after.LastBackup)
	assert.NoError(t, err)
	assert.True(t, after.Enabled, "recording the backup keeps the schedule settings")
}

func TestMirrorCommands_RequireEnabledMirror(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "mirror", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror is not enabled")
}

func TestMirrorPull_RestoresCopy(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("MUWI_MIRROR_ENABLED", "true")
	t.Setenv("MUWI_MIRROR_LOCAL_PATH", filepath.Join(env.dir, "offsite"))

	snapshot := filepath.Join(env.dir, "in.json")
	writeSnapshot(t, snapshot)
	_, err := env.run(t, "backup", "restore", "--file", snapshot)
	require.NoError(t, err)

	outDir := filepath.Join(env.dir, "exports")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	_, err = env.run(t, "backup", "create", "--output", outDir)
	require.NoError(t, err)

	out, err := env.run(t, "mirror", "list")
	require.NoError(t, err)
	assert.Contains(t, out, ".json.gz")

	copies, err := os.ReadDir(filepath.Join(env.dir, "offsite", "muwi-backups"))
	require.NoError(t, err)
	require.Len(t, copies, 1)

	pulled := filepath.Join(env.dir, "pulled.json")
	out, err = env.run(t, "mirror", "pull", copies[0].Name(), "--output", pulled, "--restore", "--merge")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 2 records")
	assert.FileExists(t, pulled)

	_, err = env.run(t, "mirror", "pull", copies[0].Name(), "--merge")
	require.Error(t, err)
}

func TestConfigCheck(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is ready")
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "plain failure", userMessage(errors.New("plain failure")))

	classified := apperrors.NewAppError(apperrors.ErrorTypeValidation, "invalid local mirror configuration",
		errors.New("local mirror base path is required"))
	wrapped := fmt.Errorf("failed to initialize application: %w", classified)
	assert.Equal(t, "invalid local mirror configuration: local mirror base path is required", userMessage(wrapped))

	bare := apperrors.NewAppError(apperrors.ErrorTypeStorage, "mirror offline", nil)
	assert.Equal(t, "mirror offline", userMessage(bare))
}

func TestExitCode(t *testing.T) {
	validation := apperrors.NewAppError(apperrors.ErrorTypeValidation, "bad config", nil)
	assert.Equal(t, 2, exitCode(fmt.Errorf("configuration error: %w", validation)))
	assert.Equal(t, 130, exitCode(apperrors.NewAppError(apperrors.ErrorTypeInterruption, "cancelled", nil)))
	assert.Equal(t, 1, exitCode(apperrors.NewAppError(apperrors.ErrorTypeStorage, "mirror offline", nil)))
	assert.Equal(t, 1, exitCode(errReported))
	assert.Equal(t, 1, exitCode(errors.New("plain failure")))
}

// Package host provides the privileged file capability of a desktop install:
// picker-driven save and load plus rotated auto-backup files.
package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/juju/clock"

	"muwi-backup/internal/backup"
	"muwi-backup/internal/logging"
)

var snapshotFilePattern = regexp.MustCompile(`^muwi-backup-(\d+)\.json$`)

var _ backup.HostFileCapability = (*DesktopHost)(nil)

// DesktopHost implements backup.HostFileCapability on the local file system.
type DesktopHost struct {
	picker Picker
	clock  clock.Clock
	logger *logging.Logger
}

// NewDesktopHost creates a DesktopHost. A nil clock uses wall time.
func NewDesktopHost(picker Picker, clk clock.Clock, logger *logging.Logger) *DesktopHost {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &DesktopHost{picker: picker, clock: clk, logger: logger}
}

// SelectBackupLocation asks the picker for a backup directory.
func (h *DesktopHost) SelectBackupLocation(ctx context.Context) (string, error) {
	return h.picker.PickDirectory(ctx)
}

// SaveBackup writes content. With a location it creates a timestamped file there
// and rotates older snapshot files down to maxBackups; otherwise it asks the
// picker where to save.
func (h *DesktopHost) SaveBackup(ctx context.Context, content []byte, location string, maxBackups int) (string, error) {
	if location == "" {
		path, err := h.picker.PickSaveFile(ctx, backup.DownloadFileName(h.clock.Now()))
		if err != nil || path == "" {
			return "", err
		}
		if err := writeFile(path, content); err != nil {
			return "", err
		}
		return path, nil
	}

	if err := os.MkdirAll(location, 0o755); err != nil {
		return "", backup.NewIOError(fmt.Sprintf("Failed to create backup directory: %v", err), err)
	}

	path := filepath.Join(location, SnapshotFileName(h.clock.Now().UnixMilli()))
	if err := writeFile(path, content); err != nil {
		return "", err
	}

	if maxBackups > 0 {
		removed, err := RotateSnapshots(location, maxBackups)
		if err != nil {
			h.logger.WithContext(ctx).WithField("location", location).WithError(err).Warn("Snapshot rotation failed")
		} else if len(removed) > 0 {
			h.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"location": location,
				"removed":  len(removed),
			}).Debug("Rotated snapshot files")
		}
	}
	return path, nil
}

// LoadBackup asks the picker for a snapshot file and reads it through the ingest guard.
func (h *DesktopHost) LoadBackup(ctx context.Context) ([]byte, error) {
	path, err := h.picker.PickOpenFile(ctx)
	if err != nil || path == "" {
		return nil, err
	}
	return ReadValidatedBackupFile(path)
}

// SnapshotFileName names an auto-backup file written at epochMillis.
func SnapshotFileName(epochMillis int64) string {
	return "muwi-backup-" + strconv.FormatInt(epochMillis, 10) + ".json"
}

// RotateSnapshots deletes the oldest snapshot files in dir so that at most keep
// remain. Only files named like SnapshotFileName are considered.
func RotateSnapshots(dir string, keep int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type snapshotFile struct {
		name  string
		stamp int64
	}
	var files []snapshotFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := snapshotFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		stamp, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{name: entry.Name(), stamp: stamp})
	}

	if len(files) <= keep {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].stamp > files[j].stamp })

	var removed []string
	for _, f := range files[keep:] {
		path := filepath.Join(dir, f.name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func writeFile(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return backup.NewIOError(fmt.Sprintf("Failed to write backup file: %v", err), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return backup.NewIOError(fmt.Sprintf("Failed to write backup file: %v", err), err)
	}
	return nil
}

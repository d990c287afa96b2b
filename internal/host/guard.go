package host

import (
	"os"
	"path/filepath"
	"strings"

	"muwi-backup/internal/backup"
)

// ReadValidatedBackupFile checks path before reading it. Guard rejections are
// validation errors carrying the user-facing message; a read failure after the
// checks pass returns nil content and no error.
func ReadValidatedBackupFile(path string) ([]byte, error) {
	if err := checkBackupFile(path); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	return content, nil
}

func checkBackupFile(path string) error {
	if path == "" {
		return backup.NewValidationError(backup.MsgFileUnreadable, nil)
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return backup.NewValidationError(backup.MsgUnsupportedFileType, nil).
			WithContext("path", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return backup.NewValidationError(backup.MsgFileUnreadable, err).WithContext("path", path)
	}
	if !info.Mode().IsRegular() {
		return backup.NewValidationError(backup.MsgFileUnreadable, nil).WithContext("path", path)
	}
	if info.Size() > backup.MaxBackupFileSize {
		return backup.NewValidationError(backup.MsgFileTooLarge, nil).
			WithContext("path", path).
			WithContext("size", info.Size())
	}
	return nil
}

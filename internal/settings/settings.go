// Package settings persists the auto-backup configuration between runs.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"muwi-backup/internal/backup"
	"muwi-backup/internal/logging"
)

const lastBackupLayout = "2006-01-02T15:04:05.000Z"

// DefaultMaxBackups is used when a settings file leaves max_backups unset.
const DefaultMaxBackups = 10

type document struct {
	AutoBackup backup.AutoBackupConfig `yaml:"auto_backup"`
}

// Store is a YAML file holding the AutoBackupConfig.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the configuration. A missing file yields a disabled daily schedule.
func (s *Store) Load() (backup.AutoBackupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the stored configuration.
func (s *Store) Save(config backup.AutoBackupConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(config)
}

// RecordBackup stamps LastBackup after a successful backup. Failed results are ignored.
func (s *Store) RecordBackup(result backup.BackupResult, at time.Time) error {
	if !result.Success {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := s.load()
	if err != nil {
		return err
	}
	config.LastBackup = at.UTC().Format(lastBackupLayout)
	return s.save(config)
}

// Recorder returns a scheduler completion callback that records successful
// backups, logging results and any write failure.
func (s *Store) Recorder(now func() time.Time, logger *logging.Logger) func(backup.BackupResult) {
	return func(result backup.BackupResult) {
		if !result.Success {
			logger.WithField("error", result.Error).Warn("Scheduled backup failed")
			return
		}
		logger.WithFields(map[string]interface{}{
			"path":    result.FilePath,
			"records": result.RecordCount,
		}).Info("Scheduled backup saved")

		if err := s.RecordBackup(result, now()); err != nil {
			logger.WithField("settings", s.path).WithError(err).Warn("Failed to record last backup time")
		}
	}
}

func (s *Store) load() (backup.AutoBackupConfig, error) {
	doc := document{AutoBackup: backup.AutoBackupConfig{Frequency: backup.FrequencyDaily, MaxBackups: DefaultMaxBackups}}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc.AutoBackup, nil
	}
	if err != nil {
		return backup.AutoBackupConfig{}, fmt.Errorf("failed to read settings file %s: %w", s.path, err)
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return backup.AutoBackupConfig{}, fmt.Errorf("failed to parse settings file %s: %w", s.path, err)
	}
	if doc.AutoBackup.Frequency == "" {
		doc.AutoBackup.Frequency = backup.FrequencyDaily
	}
	if doc.AutoBackup.MaxBackups == 0 {
		doc.AutoBackup.MaxBackups = DefaultMaxBackups
	}
	return doc.AutoBackup, nil
}

func (s *Store) save(config backup.AutoBackupConfig) error {
	data, err := yaml.Marshal(document{AutoBackup: config})
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", s.path, err)
	}
	return nil
}

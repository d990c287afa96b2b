package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"muwi-backup/internal/logging"
	"muwi-backup/internal/store"
)

// SaveObserver is notified after a snapshot has been saved through a privileged backend.
type SaveObserver interface {
	SnapshotSaved(ctx context.Context, path string, content []byte, maxBackups int) error
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Store      store.Store
	Backend    Backend
	Clock      clock.Clock
	Logger     *logging.Logger
	AppVersion string
	Observers  []SaveObserver
}

// Service is the persistence adapter. It saves, loads and restores snapshots through
// the backend chosen at construction and reports every outcome as a result value.
type Service struct {
	store      store.Store
	builder    *Builder
	restorer   *Restorer
	backend    Backend
	privileged PrivilegedBackend
	observers  []SaveObserver
	clock      clock.Clock
	logger     *logging.Logger

	// one backup or restore at a time
	opMu sync.Mutex
}

// NewService creates a Service. The privileged capability is detected once here.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Store == nil {
		return nil, NewConfigurationError("record store is required", nil)
	}
	if config.Backend == nil {
		return nil, NewConfigurationError("persistence backend is required", nil)
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.Logger == nil {
		config.Logger = logging.NewDefaultLogger()
	}

	s := &Service{
		store:     config.Store,
		builder:   NewBuilder(config.Store, config.Clock, config.AppVersion),
		restorer:  NewRestorer(config.Store),
		backend:   config.Backend,
		observers: config.Observers,
		clock:     config.Clock,
		logger:    config.Logger,
	}
	if privileged, ok := config.Backend.(PrivilegedBackend); ok {
		s.privileged = privileged
	}
	return s, nil
}

// IsPrivileged reports whether the service saves through a desktop host.
func (s *Service) IsPrivileged() bool {
	return s.privileged != nil
}

// Clock returns the clock used for timestamps.
func (s *Service) Clock() clock.Clock {
	return s.clock
}

// SelectBackupLocation asks the host for a backup directory. "" means cancelled or unavailable.
func (s *Service) SelectBackupLocation(ctx context.Context) (string, error) {
	if s.privileged == nil {
		return "", NewConfigurationError(MsgRequiresDesktop, nil)
	}
	return s.privileged.SelectLocation(ctx)
}

// CreateBackup builds a fresh envelope from the record store.
func (s *Service) CreateBackup(ctx context.Context) (*Envelope, error) {
	start := time.Now()
	envelope, err := s.builder.CreateBackup(ctx)
	if err != nil {
		s.logger.LogBackupCreated(0, 0, time.Since(start), fmt.Errorf("%s", describe(err)))
		return nil, err
	}
	s.logger.LogBackupCreated(envelope.Metadata.TableCount, envelope.Metadata.TotalRecords, time.Since(start), nil)
	return envelope, nil
}

// GetBackupStats counts every managed collection.
func (s *Service) GetBackupStats(ctx context.Context) (*BackupStats, error) {
	return CollectStats(ctx, s.store)
}

// RestoreBackup applies the envelope to the record store.
func (s *Service) RestoreBackup(ctx context.Context, envelope *Envelope, clearExisting bool) (result RestoreResult) {
	ctx = s.operationContext(ctx)
	defer s.recoverRestore(ctx, &result, MsgUnknownRestoreError)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.restore(ctx, envelope, clearExisting)
}

// RestoreFromContent parses snapshot text and restores it.
func (s *Service) RestoreFromContent(ctx context.Context, content []byte, clearExisting bool) (result RestoreResult) {
	ctx = s.operationContext(ctx)
	defer s.recoverRestore(ctx, &result, MsgUnknownLoadError)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.restoreContent(ctx, content, clearExisting)
}

// SaveBackupToFile serializes envelope, or a fresh snapshot when nil, and saves it
// through the active backend.
func (s *Service) SaveBackupToFile(ctx context.Context, envelope *Envelope) (result BackupResult) {
	ctx = s.operationContext(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithContext(ctx).WithField("panic", fmt.Sprint(r)).Error("Backup save panicked")
			result = backupFailure(MsgUnknownSaveError)
		}
		observeOperation(opSave, start, result.Success)
		observeSave(result, s.clock.Now())
	}()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	envelope, content, err := s.snapshot(ctx, envelope)
	if err != nil {
		return backupFailure(messageOr(err, MsgUnknownSaveError))
	}

	path, err := s.backend.Save(ctx, content)
	if err != nil {
		s.logFailure(ctx, "Backup save failed", err)
		return backupFailure(messageOr(err, MsgUnknownSaveError))
	}
	if path == "" {
		s.logger.WithContext(ctx).Info("Backup cancelled by user")
		return backupFailure(MsgBackupCancelled)
	}

	if s.privileged != nil {
		s.notifySaved(ctx, path, content, 0)
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"path":    path,
		"records": envelope.Metadata.TotalRecords,
	}).Info("Backup saved")
	return BackupResult{Success: true, FilePath: path, RecordCount: envelope.Metadata.TotalRecords}
}

// LoadBackupFromFile loads a user-selected snapshot and replaces the store contents with it.
func (s *Service) LoadBackupFromFile(ctx context.Context) RestoreResult {
	return s.loadFromBackend(ctx, true)
}

// MergeBackupFromFile loads a user-selected snapshot and upserts its records.
func (s *Service) MergeBackupFromFile(ctx context.Context) RestoreResult {
	return s.loadFromBackend(ctx, false)
}

// PerformAutoBackup saves a fresh snapshot into location, keeping at most maxBackups files.
func (s *Service) PerformAutoBackup(ctx context.Context, location string, maxBackups int) (result BackupResult) {
	ctx = s.operationContext(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithContext(ctx).WithField("panic", fmt.Sprint(r)).Error("Auto-backup panicked")
			result = backupFailure(MsgAutoBackupFailed)
		}
		observeOperation(opAuto, start, result.Success)
		observeSave(result, s.clock.Now())
	}()

	if s.privileged == nil {
		return backupFailure(MsgRequiresDesktop)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	envelope, content, err := s.snapshot(ctx, nil)
	if err != nil {
		return backupFailure(messageOr(err, MsgAutoBackupFailed))
	}

	path, err := s.privileged.SaveTo(ctx, content, location, maxBackups)
	if err != nil {
		s.logFailure(ctx, "Auto-backup save failed", err)
		return backupFailure(messageOr(err, MsgAutoBackupFailed))
	}
	if path == "" {
		return backupFailure(MsgAutoBackupFailed)
	}

	s.notifySaved(ctx, path, content, maxBackups)
	return BackupResult{Success: true, FilePath: path, RecordCount: envelope.Metadata.TotalRecords}
}

func (s *Service) loadFromBackend(ctx context.Context, clearExisting bool) (result RestoreResult) {
	ctx = s.operationContext(ctx)
	start := time.Now()
	defer s.recoverRestore(ctx, &result, MsgUnknownLoadError)
	defer func() { observeOperation(opLoad, start, result.Success) }()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	content, err := s.backend.Load(ctx)
	if err != nil {
		s.logFailure(ctx, "Backup load failed", err)
		return restoreFailure(messageOr(err, MsgUnknownLoadError))
	}
	if content == nil {
		return restoreFailure(MsgNoFileSelected)
	}
	return s.restoreContent(ctx, content, clearExisting)
}

func (s *Service) restoreContent(ctx context.Context, content []byte, clearExisting bool) RestoreResult {
	envelope, err := ParseBackupJSON(content)
	if err != nil {
		s.logFailure(ctx, "Backup file rejected", err)
		return restoreFailure(messageOr(err, MsgUnknownLoadError))
	}
	return s.restore(ctx, envelope, clearExisting)
}

// restore must be called with opMu held.
func (s *Service) restore(ctx context.Context, envelope *Envelope, clearExisting bool) RestoreResult {
	start := time.Now()
	result, err := s.restorer.Restore(ctx, envelope, clearExisting)
	observeOperation(opRestore, start, result.Success)

	if err != nil {
		s.logger.LogRestore(0, 0, clearExisting, time.Since(start), fmt.Errorf("%s", describe(err)))
		return result
	}
	recordsRestoredTotal.Add(float64(result.RecordsRestored))
	s.logger.LogRestore(result.RecordsRestored, result.TablesRestored, clearExisting, time.Since(start), nil)
	return result
}

// snapshot builds envelope when nil and serializes it.
func (s *Service) snapshot(ctx context.Context, envelope *Envelope) (*Envelope, []byte, error) {
	if envelope == nil {
		var err error
		if envelope, err = s.CreateBackup(ctx); err != nil {
			return nil, nil, err
		}
	}
	content, err := BackupToJSON(envelope)
	if err != nil {
		s.logFailure(ctx, "Backup serialization failed", err)
		return nil, nil, err
	}
	return envelope, content, nil
}

func (s *Service) notifySaved(ctx context.Context, path string, content []byte, maxBackups int) {
	for _, observer := range s.observers {
		if err := observer.SnapshotSaved(ctx, path, content, maxBackups); err != nil {
			s.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			}).Warn("Post-save hook failed")
		}
	}
}

func (s *Service) recoverRestore(ctx context.Context, result *RestoreResult, fallback string) {
	if r := recover(); r != nil {
		s.logger.WithContext(ctx).WithField("panic", fmt.Sprint(r)).Error("Restore panicked")
		*result = restoreFailure(fallback)
	}
}

func (s *Service) logFailure(ctx context.Context, msg string, err error) {
	s.logger.WithContext(ctx).WithField("error", describe(err)).Warn(msg)
}

// operationContext tags ctx with a correlation id unless it already carries one.
func (s *Service) operationContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logging.GetRequestIDFromContext(ctx) != "" {
		return ctx
	}
	return logging.CreateContextWithRequestID(ctx, uuid.NewString())
}

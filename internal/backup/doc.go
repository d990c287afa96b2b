// Package backup produces, validates and restores MUWI snapshots.
//
// A snapshot (the envelope) captures every managed collection of the local record store
// together with metadata describing its format version and record counts. The package is
// organised around a few small components:
//
// - Builder: reads every managed collection and assembles an envelope
// - Validator and serializer: check envelopes and convert them to and from JSON text
// - Restorer: applies an envelope to the store in one batch, optionally clearing first
// - Service: the persistence adapter, saving and loading through a privileged or sandboxed backend
// - Scheduler: a single recurring timer that saves unattended snapshots
//
// Public entry points never return Go errors to the UI layer. Every failure is reported
// through BackupResult or RestoreResult with a fixed, user-facing message.
//
// Example usage:
//
//	svc, err := backup.NewService(backup.ServiceConfig{
//		Store:   recordStore,
//		Backend: desktopHost,
//		Logger:  logger,
//	})
//	if err != nil {
//		return err
//	}
//
//	result := svc.SaveBackupToFile(ctx, nil)
//	if !result.Success {
//		return fmt.Errorf("backup failed: %s", result.Error)
//	}
package backup

package backup

import (
	"context"
)

// HostFileCapability is the file access offered by a desktop host.
type HostFileCapability interface {
	// SelectBackupLocation asks the user for a backup directory. "" means cancelled.
	SelectBackupLocation(ctx context.Context) (string, error)
	// SaveBackup writes content and returns the file path. With an empty location the
	// host asks the user where to save; maxBackups bounds the files kept in location.
	// "" means cancelled.
	SaveBackup(ctx context.Context, content []byte, location string, maxBackups int) (string, error)
	// LoadBackup asks the user for a snapshot file and returns its content. nil means
	// nothing was selected or the file could not be read.
	LoadBackup(ctx context.Context) ([]byte, error)
}

// Backend persists serialized snapshots on behalf of the Service.
type Backend interface {
	// Save stores content and returns where it went. "" means the user cancelled.
	Save(ctx context.Context, content []byte) (string, error)
	// Load returns user-selected snapshot content. nil means nothing was selected.
	Load(ctx context.Context) ([]byte, error)
}

// PrivilegedBackend is a Backend with direct file-system access.
type PrivilegedBackend interface {
	Backend
	// SaveTo writes content into location, keeping at most maxBackups snapshot files.
	SaveTo(ctx context.Context, content []byte, location string, maxBackups int) (string, error)
	// SelectLocation asks the user for a backup directory.
	SelectLocation(ctx context.Context) (string, error)
}

type privilegedBackend struct {
	host HostFileCapability
}

// NewPrivilegedBackend adapts a host file capability to a PrivilegedBackend.
func NewPrivilegedBackend(host HostFileCapability) PrivilegedBackend {
	return &privilegedBackend{host: host}
}

func (b *privilegedBackend) Save(ctx context.Context, content []byte) (string, error) {
	return b.host.SaveBackup(ctx, content, "", 0)
}

func (b *privilegedBackend) SaveTo(ctx context.Context, content []byte, location string, maxBackups int) (string, error) {
	return b.host.SaveBackup(ctx, content, location, maxBackups)
}

func (b *privilegedBackend) Load(ctx context.Context) ([]byte, error) {
	return b.host.LoadBackup(ctx)
}

func (b *privilegedBackend) SelectLocation(ctx context.Context) (string, error) {
	return b.host.SelectBackupLocation(ctx)
}

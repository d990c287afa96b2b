package backup

import (
	"muwi-backup/internal/store"
)

// BackupVersion is the snapshot format version written by this build.
const BackupVersion = "1.0.0"

// Record is one opaque record of a collection.
type Record = store.Record

// Metadata describes a snapshot.
type Metadata struct {
	Version      string `json:"version"`
	CreatedAt    string `json:"createdAt"`
	AppVersion   string `json:"appVersion"`
	TableCount   int    `json:"tableCount"`
	TotalRecords int    `json:"totalRecords"`
}

// Envelope is the versioned snapshot of every managed collection.
type Envelope struct {
	Metadata Metadata            `json:"metadata"`
	Data     map[string][]Record `json:"data"`
}

// RecordCount returns the number of records actually held in Data.
func (e *Envelope) RecordCount() int {
	total := 0
	for _, records := range e.Data {
		total += len(records)
	}
	return total
}

// BackupResult reports the outcome of a save.
type BackupResult struct {
	Success     bool   `json:"success"`
	FilePath    string `json:"filePath,omitempty"`
	RecordCount int    `json:"recordCount,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RestoreResult reports the outcome of a restore.
type RestoreResult struct {
	Success         bool   `json:"success"`
	RecordsRestored int    `json:"recordsRestored,omitempty"`
	TablesRestored  int    `json:"tablesRestored,omitempty"`
	Error           string `json:"error,omitempty"`
}

func backupFailure(message string) BackupResult {
	return BackupResult{Success: false, Error: message}
}

func restoreFailure(message string) RestoreResult {
	return RestoreResult{Success: false, Error: message}
}

package backup

import (
	"context"
	"fmt"

	"muwi-backup/internal/store"
)

// Restorer applies envelopes to the record store.
type Restorer struct {
	store store.Store
}

// NewRestorer creates a restorer writing to st.
func NewRestorer(st store.Store) *Restorer {
	return &Restorer{store: st}
}

// Restore applies the envelope in a single batch. With clearExisting every managed
// collection is emptied and rewritten; otherwise non-empty collections are upserted by id.
func (r *Restorer) Restore(ctx context.Context, envelope *Envelope, clearExisting bool) (RestoreResult, error) {
	if errs := validateCandidate(envelope); errs.HasErrors() {
		return restoreFailure(MsgInvalidBackupFormat), NewValidationError(MsgInvalidBackupFormat, errs)
	}

	version := envelope.Metadata.Version
	if !IsCompatibleVersion(version) {
		msg := fmt.Sprintf("%s: %s", MsgIncompatibleVersion, version)
		return restoreFailure(msg), NewValidationError(msg, nil).WithContext("supported", BackupVersion)
	}

	if actual := envelope.RecordCount(); actual != envelope.Metadata.TotalRecords {
		return restoreFailure(MsgRecordCountMismatch), NewValidationError(MsgRecordCountMismatch, nil).
			WithContext("declared", envelope.Metadata.TotalRecords).
			WithContext("actual", actual)
	}

	batch, recordsRestored, tablesRestored := planRestore(envelope, clearExisting)

	if err := r.store.Apply(ctx, batch); err != nil {
		return restoreFailure(messageOr(err, MsgUnknownRestoreError)), NewStorageError(messageOr(err, MsgUnknownRestoreError), err)
	}

	return RestoreResult{
		Success:         true,
		RecordsRestored: recordsRestored,
		TablesRestored:  tablesRestored,
	}, nil
}

// planRestore builds the batch for the envelope. Keys outside the managed set are ignored.
func planRestore(envelope *Envelope, clearExisting bool) (*store.Batch, int, int) {
	batch := &store.Batch{}
	records, tables := 0, 0

	if clearExisting {
		for _, collection := range managedCollections {
			batch.Clear(collection)
		}
	}

	for _, collection := range managedCollections {
		items := envelope.Data[collection]
		if len(items) == 0 && !clearExisting {
			continue
		}
		if len(items) > 0 {
			records += len(items)
			tables++
		}
		if items == nil {
			items = []Record{}
		}
		batch.Put(collection, items)
	}
	return batch, records, tables
}

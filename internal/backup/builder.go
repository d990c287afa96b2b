package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"muwi-backup/internal/store"
)

// createdAtLayout is the UTC millisecond timestamp written to metadata.createdAt.
const createdAtLayout = "2006-01-02T15:04:05.000Z"

// Builder assembles envelopes from the record store.
type Builder struct {
	store      store.Store
	clock      clock.Clock
	appVersion string
}

// NewBuilder creates a snapshot builder.
func NewBuilder(st store.Store, clk clock.Clock, appVersion string) *Builder {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Builder{store: st, clock: clk, appVersion: appVersion}
}

// CreateBackup reads every managed collection into a fresh envelope.
func (b *Builder) CreateBackup(ctx context.Context) (*Envelope, error) {
	data := make(map[string][]Record, len(managedCollections))
	total := 0

	for _, collection := range managedCollections {
		records, err := b.store.All(ctx, collection)
		if err != nil {
			return nil, NewStorageError(fmt.Sprintf("%s: %v", MsgCreateBackupFailed, err), err).
				WithContext("collection", collection)
		}
		if records == nil {
			records = make([]Record, 0)
		}
		data[collection] = records
		total += len(records)
	}

	return &Envelope{
		Metadata: Metadata{
			Version:      BackupVersion,
			CreatedAt:    b.clock.Now().UTC().Format(createdAtLayout),
			AppVersion:   b.appVersion,
			TableCount:   ManagedTableCount,
			TotalRecords: total,
		},
		Data: data,
	}, nil
}

// formatBackupDate returns the YYYY-MM-DD date used in download names.
func formatBackupDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

package backup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muwi-backup/internal/store"
)

func TestRestore_FullIntoEmptyStore(t *testing.T) {
	source := newMemStore()
	source.seed(t, CollectionDrafts, draftRecord("draft-1"))
	source.seed(t, CollectionSettings, settingsRecord())

	envelope, err := newTestBuilder(source).CreateBackup(context.Background())
	require.NoError(t, err)

	target := newMemStore()
	result, err := NewRestorer(target).Restore(context.Background(), envelope, true)
	require.NoError(t, err)

	assert.Equal(t, RestoreResult{Success: true, RecordsRestored: 2, TablesRestored: 2}, result)
	assert.Equal(t, 2, target.total())
	assert.Equal(t, draftRecord("draft-1"), target.get(CollectionDrafts, "draft-1"))
	assert.Equal(t, settingsRecord(), target.get(CollectionSettings, "global"))
}

func TestRestore_ClearRemovesRecordsAbsentFromSnapshot(t *testing.T) {
	target := newMemStore()
	target.seed(t, CollectionDiaryEntries, draftRecord("old-entry"))
	target.seed(t, CollectionDrafts, draftRecord("old-draft"))

	result, err := NewRestorer(target).Restore(context.Background(), wellFormedEnvelope(), true)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Nil(t, target.get(CollectionDiaryEntries, "old-entry"))
	assert.Nil(t, target.get(CollectionDrafts, "old-draft"))
	assert.Equal(t, 2, target.total())
	assert.Equal(t, 1, target.applyCalls)
}

func TestRestore_Additive(t *testing.T) {
	target := newMemStore()
	target.seed(t, CollectionDiaryEntries, draftRecord("entry-1"))
	existing := draftRecord("draft-1")
	existing["title"] = "Local title"
	target.seed(t, CollectionDrafts, existing, draftRecord("draft-local"))

	result, err := NewRestorer(target).Restore(context.Background(), wellFormedEnvelope(), false)
	require.NoError(t, err)

	assert.Equal(t, RestoreResult{Success: true, RecordsRestored: 2, TablesRestored: 2}, result)
	assert.NotNil(t, target.get(CollectionDiaryEntries, "entry-1"), "untouched collection was cleared")
	assert.NotNil(t, target.get(CollectionDrafts, "draft-local"), "merge removed an existing record")
	assert.Equal(t, "Backup Draft", target.get(CollectionDrafts, "draft-1")["title"], "merge should overwrite by id")
}

func TestRestore_TablesRestoredIgnoresClearFlag(t *testing.T) {
	for _, clearExisting := range []bool{true, false} {
		result, err := NewRestorer(newMemStore()).Restore(context.Background(), wellFormedEnvelope(), clearExisting)
		require.NoError(t, err)
		assert.Equal(t, 2, result.TablesRestored)
		assert.Equal(t, 2, result.RecordsRestored)
	}
}

func TestRestore_IncompatibleVersion(t *testing.T) {
	target := newMemStore()
	target.seed(t, CollectionDrafts, draftRecord("keep"))

	envelope := wellFormedEnvelope()
	envelope.Metadata.Version = "2.0.0"

	result, err := NewRestorer(target).Restore(context.Background(), envelope, true)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Incompatible backup version")
	assert.Equal(t, "Incompatible backup version: 2.0.0", result.Error)
	assert.Zero(t, target.applyCalls)
	assert.NotNil(t, target.get(CollectionDrafts, "keep"))
}

func TestRestore_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		envelope *Envelope
		wantMsg  string
	}{
		{"nil envelope", nil, MsgInvalidBackupFormat},
		{"bad table count", func() *Envelope {
			e := wellFormedEnvelope()
			e.Metadata.TableCount = 3
			return e
		}(), MsgInvalidBackupFormat},
		{"count mismatch", func() *Envelope {
			e := wellFormedEnvelope()
			e.Metadata.TotalRecords = 5
			return e
		}(), MsgRecordCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := newMemStore()
			result, err := NewRestorer(target).Restore(context.Background(), tt.envelope, true)
			require.Error(t, err)
			assert.Equal(t, restoreFailure(tt.wantMsg), result)
			assert.Zero(t, target.applyCalls)
		})
	}
}

func TestRestore_StoreFailureLeavesNoPartialState(t *testing.T) {
	target := newMemStore()
	target.seed(t, CollectionDrafts, draftRecord("keep"))
	target.failPutOn = CollectionSettings

	result, err := NewRestorer(target).Restore(context.Background(), wellFormedEnvelope(), true)
	require.Error(t, err)
	assert.Equal(t, restoreFailure("disk full"), result)
	assert.Equal(t, ErrorKindStorage, KindOf(err))
	assert.NotNil(t, target.get(CollectionDrafts, "keep"))
	assert.Equal(t, 1, target.total())
}

func TestRestore_RecordWithoutKey(t *testing.T) {
	envelope := wellFormedEnvelope()
	envelope.Data[CollectionFigures] = []Record{{"caption": "no id"}}
	envelope.Metadata.TotalRecords = 3

	target := newMemStore()
	result, err := NewRestorer(target).Restore(context.Background(), envelope, true)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "figures[0]")
	assert.Zero(t, target.total())
}

func TestPlanRestore(t *testing.T) {
	envelope := wellFormedEnvelope()
	envelope.Data["futureThings"] = []Record{{"id": "x"}}

	t.Run("clear", func(t *testing.T) {
		batch, records, tables := planRestore(envelope, true)
		assert.Equal(t, 2, records)
		assert.Equal(t, 2, tables)
		assert.Len(t, batch.Ops, 2*ManagedTableCount)
		assert.Equal(t, store.OpClear, batch.Ops[0].Kind)
		assert.Equal(t, store.OpPut, batch.Ops[ManagedTableCount].Kind)
		assert.NotContains(t, batch.Collections(), "futureThings")
	})

	t.Run("merge", func(t *testing.T) {
		batch, records, tables := planRestore(envelope, false)
		assert.Equal(t, 2, records)
		assert.Equal(t, 2, tables)
		assert.ElementsMatch(t, []string{CollectionDrafts, CollectionSettings}, batch.Collections())
		for _, op := range batch.Ops {
			assert.Equal(t, store.OpPut, op.Kind)
		}
	})
}

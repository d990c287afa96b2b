package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBackup(t *testing.T) {
	st := newMemStore()
	st.seed(t, CollectionDrafts, draftRecord("draft-1"))
	st.seed(t, CollectionSettings, settingsRecord())

	envelope, err := newTestBuilder(st).CreateBackup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15, envelope.Metadata.TableCount)
	assert.Equal(t, 2, envelope.Metadata.TotalRecords)
	assert.Len(t, envelope.Data[CollectionDrafts], 1)
	assert.Equal(t, BackupVersion, envelope.Metadata.Version)
	assert.Equal(t, "1.2.3", envelope.Metadata.AppVersion)
	assert.Equal(t, "2026-02-12T13:00:00.000Z", envelope.Metadata.CreatedAt)
	assert.True(t, ValidateBackup(envelope))
}

func TestCreateBackup_EmptyStore(t *testing.T) {
	envelope, err := newTestBuilder(newMemStore()).CreateBackup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ManagedTableCount, envelope.Metadata.TableCount)
	assert.Zero(t, envelope.Metadata.TotalRecords)
	assert.Len(t, envelope.Data, ManagedTableCount)
	for _, c := range ManagedCollections() {
		records, ok := envelope.Data[c]
		assert.True(t, ok, "collection %s missing", c)
		assert.NotNil(t, records, "collection %s should be an empty list", c)
	}
	assert.True(t, ValidateBackup(envelope))
}

func TestCreateBackup_CountInvariant(t *testing.T) {
	st := newMemStore()
	st.seed(t, CollectionDrafts, draftRecord("a"), draftRecord("b"), draftRecord("c"))
	st.seed(t, CollectionCitations, draftRecord("c-1"))
	st.seed(t, CollectionFigures, draftRecord("f-1"), draftRecord("f-2"))

	envelope, err := newTestBuilder(st).CreateBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, envelope.RecordCount(), envelope.Metadata.TotalRecords)
	assert.Equal(t, 6, envelope.Metadata.TotalRecords)
}

func TestCreateBackup_ReadFailure(t *testing.T) {
	st := newMemStore()
	st.readErr = errors.New("database is closed")

	envelope, err := newTestBuilder(st).CreateBackup(context.Background())
	require.Error(t, err)
	assert.Nil(t, envelope)
	assert.Equal(t, "Failed to create backup: database is closed", err.Error())
	assert.Equal(t, ErrorKindStorage, KindOf(err))
	assert.ErrorIs(t, err, st.readErr)
}

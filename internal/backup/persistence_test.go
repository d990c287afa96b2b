package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muwi-backup/internal/logging"
)

type recordingObserver struct {
	paths      []string
	maxBackups []int
	err        error
}

func (o *recordingObserver) SnapshotSaved(_ context.Context, path string, _ []byte, maxBackups int) error {
	o.paths = append(o.paths, path)
	o.maxBackups = append(o.maxBackups, maxBackups)
	return o.err
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceConfig{Backend: NewSandboxBackend(&fakeBrowser{}, nil)})
	require.Error(t, err)
	assert.Equal(t, ErrorKindConfiguration, KindOf(err))

	_, err = NewService(ServiceConfig{Store: newMemStore()})
	require.Error(t, err)
}

func TestService_PrivilegedSaveAndLoad(t *testing.T) {
	st := newMemStore()
	st.seed(t, CollectionDrafts, draftRecord("draft-1"))
	st.seed(t, CollectionSettings, settingsRecord())

	host := &fakeHost{savePath: "/tmp/muwi-backup.json"}
	observer := &recordingObserver{}
	svc := newTestService(t, st, NewPrivilegedBackend(host), observer)
	ctx := context.Background()

	assert.True(t, svc.IsPrivileged())

	envelope, err := svc.CreateBackup(ctx)
	require.NoError(t, err)

	saved := svc.SaveBackupToFile(ctx, envelope)
	assert.Equal(t, BackupResult{Success: true, FilePath: "/tmp/muwi-backup.json", RecordCount: 2}, saved)
	require.Len(t, host.saved, 1)
	assert.Equal(t, "", host.locations[0])
	assert.Equal(t, []string{"/tmp/muwi-backup.json"}, observer.paths)

	host.savePath = ""
	cancelled := svc.SaveBackupToFile(ctx, envelope)
	assert.Equal(t, BackupResult{Success: false, Error: MsgBackupCancelled}, cancelled)

	host.loadContent = host.saved[0]
	emptied := newMemStore()
	emptied.seed(t, CollectionDiaryEntries, draftRecord("stale"))
	restoreSvc := newTestService(t, emptied, NewPrivilegedBackend(host))

	loaded := restoreSvc.LoadBackupFromFile(ctx)
	assert.Equal(t, RestoreResult{Success: true, RecordsRestored: 2, TablesRestored: 2}, loaded)
	assert.Equal(t, 2, emptied.total())
	assert.Nil(t, emptied.get(CollectionDiaryEntries, "stale"))

	host.loadContent = nil
	noFile := restoreSvc.LoadBackupFromFile(ctx)
	assert.Equal(t, RestoreResult{Success: false, Error: MsgNoFileSelected}, noFile)
}

func TestService_SaveBuildsFreshSnapshot(t *testing.T) {
	st := newMemStore()
	st.seed(t, CollectionDrafts, draftRecord("draft-1"))
	host := &fakeHost{savePath: "/tmp/a.json"}
	svc := newTestService(t, st, NewPrivilegedBackend(host))

	result := svc.SaveBackupToFile(context.Background(), nil)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.RecordCount)

	parsed, err := ParseBackupJSON(host.saved[0])
	require.NoError(t, err)
	assert.Len(t, parsed.Data[CollectionDrafts], 1)
}

func TestService_MergeBackupFromFile(t *testing.T) {
	content, err := BackupToJSON(wellFormedEnvelope())
	require.NoError(t, err)

	st := newMemStore()
	st.seed(t, CollectionDiaryEntries, draftRecord("entry-1"))
	svc := newTestService(t, st, NewPrivilegedBackend(&fakeHost{loadContent: content}))

	result := svc.MergeBackupFromFile(context.Background())
	assert.Equal(t, RestoreResult{Success: true, RecordsRestored: 2, TablesRestored: 2}, result)
	assert.Equal(t, 3, st.total())
}

func TestService_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		host    *fakeHost
		wantMsg string
	}{
		{"invalid json", &fakeHost{loadContent: []byte("{nope")}, MsgInvalidJSON},
		{"empty file", &fakeHost{loadContent: []byte{}}, MsgEmptyBackupFile},
		{"invalid format", &fakeHost{loadContent: []byte(`{"metadata":{}}`)}, MsgInvalidBackupFormat},
		{"guard rejection", &fakeHost{loadErr: NewValidationError(MsgUnsupportedFileType, nil)}, MsgUnsupportedFileType},
		{"error without message", &fakeHost{loadErr: errors.New("")}, MsgUnknownLoadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore()
			svc := newTestService(t, st, NewPrivilegedBackend(tt.host))
			result := svc.LoadBackupFromFile(context.Background())
			assert.Equal(t, RestoreResult{Success: false, Error: tt.wantMsg}, result)
			assert.Zero(t, st.applyCalls)
		})
	}
}

func TestService_RestoreVersionGate(t *testing.T) {
	envelope := wellFormedEnvelope()
	envelope.Metadata.Version = "2.0.0"

	st := newMemStore()
	svc := newTestService(t, st, NewSandboxBackend(&fakeBrowser{}, nil))

	result := svc.RestoreBackup(context.Background(), envelope, true)
	assert.False(t, result.Success)
	assert.Regexp(t, "Incompatible backup version", result.Error)
	assert.Zero(t, st.applyCalls)
}

func TestService_SandboxSaveAndLoad(t *testing.T) {
	st := newMemStore()
	st.seed(t, CollectionDrafts, draftRecord("draft-1"))
	browser := &fakeBrowser{}
	svc := newTestService(t, st, NewSandboxBackend(browser, newTestClock()))
	ctx := context.Background()

	assert.False(t, svc.IsPrivileged())

	saved := svc.SaveBackupToFile(ctx, nil)
	assert.Equal(t, BackupResult{Success: true, FilePath: "muwi-backup-2026-02-12.json", RecordCount: 1}, saved)
	require.Contains(t, browser.downloads, "muwi-backup-2026-02-12.json")

	browser.upload = browser.downloads["muwi-backup-2026-02-12.json"]
	loaded := svc.LoadBackupFromFile(ctx)
	assert.True(t, loaded.Success)
	assert.Equal(t, 1, loaded.RecordsRestored)

	browser.upload = nil
	assert.Equal(t, MsgNoFileSelected, svc.LoadBackupFromFile(ctx).Error)

	browser.uploadErr = errors.New("read aborted")
	assert.Equal(t, MsgNoFileSelected, svc.LoadBackupFromFile(ctx).Error)

	browser.uploadErr = NewValidationError(MsgFileTooLarge, nil)
	assert.Equal(t, MsgFileTooLarge, svc.LoadBackupFromFile(ctx).Error)

	browser.downloadErr = errors.New("download blocked")
	assert.Equal(t, BackupResult{Success: false, Error: "download blocked"}, svc.SaveBackupToFile(ctx, nil))
}

func TestService_SaveReportsBuildFailure(t *testing.T) {
	st := newMemStore()
	st.readErr = errors.New("closed")
	svc := newTestService(t, st, NewPrivilegedBackend(&fakeHost{savePath: "/tmp/x.json"}))

	result := svc.SaveBackupToFile(context.Background(), nil)
	assert.Equal(t, BackupResult{Success: false, Error: "Failed to create backup: closed"}, result)
}

func TestService_RecoversFromPanics(t *testing.T) {
	st := newMemStore()
	st.panicOnRead = true
	host := &fakeHost{savePath: "/tmp/x.json"}
	svc := newTestService(t, st, NewPrivilegedBackend(host))
	ctx := context.Background()

	assert.Equal(t, backupFailure(MsgUnknownSaveError), svc.SaveBackupToFile(ctx, nil))
	assert.Equal(t, backupFailure(MsgAutoBackupFailed), svc.PerformAutoBackup(ctx, "/tmp", 5))

	// the op lock must have been released by the panicking calls
	st.panicOnRead = false
	assert.True(t, svc.SaveBackupToFile(ctx, nil).Success)
}

func TestService_PerformAutoBackup(t *testing.T) {
	st := newMemStore()
	st.seed(t, CollectionDrafts, draftRecord("draft-1"))
	host := &fakeHost{savePath: "/tmp/muwi-auto-backup.json"}
	observer := &recordingObserver{err: errors.New("mirror offline")}
	svc := newTestService(t, st, NewPrivilegedBackend(host), observer)
	ctx := context.Background()

	result := svc.PerformAutoBackup(ctx, "/tmp", 5)
	assert.Equal(t, BackupResult{Success: true, FilePath: "/tmp/muwi-auto-backup.json", RecordCount: 1}, result)
	assert.Equal(t, []string{"/tmp"}, host.locations)
	assert.Equal(t, []int{5}, host.maxBackups)
	assert.Equal(t, []int{5}, observer.maxBackups)

	host.saveErr = errors.New("permission denied")
	assert.Equal(t, backupFailure("permission denied"), svc.PerformAutoBackup(ctx, "/tmp", 5))

	host.saveErr = errors.New("")
	assert.Equal(t, backupFailure(MsgAutoBackupFailed), svc.PerformAutoBackup(ctx, "/tmp", 5))
}

func TestService_PerformAutoBackupRequiresDesktop(t *testing.T) {
	svc := newTestService(t, newMemStore(), NewSandboxBackend(&fakeBrowser{}, nil))

	result := svc.PerformAutoBackup(context.Background(), "/tmp", 5)
	assert.Equal(t, BackupResult{Success: false, Error: MsgRequiresDesktop}, result)

	_, err := svc.SelectBackupLocation(context.Background())
	assert.Error(t, err)
}

func TestService_OperationContextCarriesRequestID(t *testing.T) {
	svc := newTestService(t, newMemStore(), NewSandboxBackend(&fakeBrowser{}, nil))

	ctx := svc.operationContext(context.Background())
	assert.NotEmpty(t, logging.GetRequestIDFromContext(ctx))

	tagged := logging.CreateContextWithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", logging.GetRequestIDFromContext(svc.operationContext(tagged)))
}

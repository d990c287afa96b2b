package mirror

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muwi-backup/internal/backup"
	apperrors "muwi-backup/internal/errors"
	"muwi-backup/internal/logging"
)

type memProvider struct {
	objects map[string][]byte
	times   map[string]time.Time
	now     time.Time
	putErr  error
	puts    int
}

func newMemProvider() *memProvider {
	return &memProvider{
		objects: map[string][]byte{},
		times:   map[string]time.Time{},
		now:     time.Date(2026, 2, 12, 13, 0, 0, 0, time.UTC),
	}
}

func (p *memProvider) Put(_ context.Context, name string, content []byte) error {
	p.puts++
	if p.putErr != nil {
		return p.putErr
	}
	p.now = p.now.Add(time.Minute)
	p.objects[name] = content
	p.times[name] = p.now
	return nil
}

func (p *memProvider) Get(_ context.Context, name string) ([]byte, error) {
	content, ok := p.objects[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return content, nil
}

func (p *memProvider) List(context.Context) ([]Object, error) {
	var objects []Object
	for name, content := range p.objects {
		objects = append(objects, Object{Name: name, Size: int64(len(content)), ModTime: p.times[name]})
	}
	return objects, nil
}

func (p *memProvider) Delete(_ context.Context, names []string) error {
	for _, name := range names {
		delete(p.objects, name)
	}
	return nil
}

func (p *memProvider) Describe() string { return "mem://" }

func (p *memProvider) names() []string {
	var names []string
	for name := range p.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newTestMirror(provider Provider, maxCopies int, algorithm CompressionType) *Mirror {
	config := Config{
		MaxCopies:   maxCopies,
		Compression: CompressionConfig{Algorithm: algorithm},
		Retry:       RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	config.Compression.SetDefaults()
	return New(provider, config, logging.NewDiscardLogger())
}

func TestMirror_SnapshotSavedCompressesAndPulls(t *testing.T) {
	provider := newMemProvider()
	m := newTestMirror(provider, 3, CompressionTypeGzip)
	ctx := context.Background()
	content := []byte(`{"metadata":{"version":"1.0.0"},"data":{}}`)

	require.NoError(t, m.SnapshotSaved(ctx, "/home/me/backups/muwi-backup-1770901200000.json", content, 0))
	assert.Equal(t, []string{"muwi-backup-1770901200000.json.gz"}, provider.names())
	assert.NotEqual(t, content, provider.objects["muwi-backup-1770901200000.json.gz"])

	pulled, err := m.Pull(ctx, "muwi-backup-1770901200000.json.gz")
	require.NoError(t, err)
	assert.Equal(t, content, pulled)
}

func TestMirror_RotationKeepsNewest(t *testing.T) {
	provider := newMemProvider()
	m := newTestMirror(provider, 2, CompressionTypeNone)
	ctx := context.Background()

	for _, name := range []string{"a.json", "b.json", "c.json"} {
		require.NoError(t, m.SnapshotSaved(ctx, name, []byte("{}"), 0))
	}
	assert.Equal(t, []string{"b.json", "c.json"}, provider.names())

	// an explicit max from the auto-backup config wins over the default
	require.NoError(t, m.SnapshotSaved(ctx, "d.json", []byte("{}"), 1))
	assert.Equal(t, []string{"d.json"}, provider.names())

	objects, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "d.json", objects[0].Name)
}

func TestMirror_UploadFailure(t *testing.T) {
	provider := newMemProvider()
	provider.putErr = errors.New("bucket gone")
	m := newTestMirror(provider, 2, CompressionTypeNone)

	err := m.SnapshotSaved(context.Background(), "a.json", []byte("{}"), 0)
	require.Error(t, err)
	assert.Equal(t, 1, provider.puts, "unclassified failures are not retried")
	assert.Empty(t, provider.names())
}

func TestMirror_UploadRetriesRecoverableFailure(t *testing.T) {
	provider := newMemProvider()
	provider.putErr = apperrors.NewRecoverableError(apperrors.ErrorTypeConnection, "bucket unreachable", nil)
	m := newTestMirror(provider, 2, CompressionTypeNone)

	before := testutil.ToFloat64(mirrorUploadsTotal.WithLabelValues("retries_exhausted"))
	err := m.SnapshotSaved(context.Background(), "a.json", []byte("{}"), 0)
	require.Error(t, err)
	assert.Equal(t, 2, provider.puts, "every configured attempt is used")
	assert.True(t, apperrors.IsRecoverableError(err))
	assert.Equal(t, before+1, testutil.ToFloat64(mirrorUploadsTotal.WithLabelValues("retries_exhausted")))
}

func TestMirror_PullRejectsCorruptCopy(t *testing.T) {
	provider := newMemProvider()
	provider.objects["broken.json.gz"] = []byte("plain text")
	m := newTestMirror(provider, 2, CompressionTypeGzip)

	_, err := m.Pull(context.Background(), "broken.json.gz")
	require.Error(t, err)
	assert.Equal(t, backup.MsgInvalidBackupFormat, err.Error())
	assert.Equal(t, backup.ErrorKindValidation, backup.KindOf(err))
}

func TestSortNewestFirst(t *testing.T) {
	now := time.Now()
	objects := []Object{
		{Name: "old", ModTime: now.Add(-time.Hour)},
		{Name: "b", ModTime: now},
		{Name: "c", ModTime: now},
	}
	sortNewestFirst(objects)
	assert.Equal(t, "c", objects[0].Name)
	assert.Equal(t, "b", objects[1].Name)
	assert.Equal(t, "old", objects[2].Name)
	assert.Equal(t, time.Hour, objects[2].Age(now))
}

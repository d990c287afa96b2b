package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"muwi-backup/internal/logging"
	"muwi-backup/internal/store"
)

var testNow = time.Date(2026, 2, 12, 13, 0, 0, 0, time.UTC)

// memStore is an in-memory store.Store whose Apply is all-or-nothing.
type memStore struct {
	mu          sync.Mutex
	collections map[string]map[string]store.Record
	applyCalls  int
	readErr     error
	failPutOn   string
	panicOnRead bool
}

func newMemStore() *memStore {
	return &memStore{collections: make(map[string]map[string]store.Record)}
}

func (m *memStore) seed(t *testing.T, collection string, records ...store.Record) {
	t.Helper()
	batch := &store.Batch{}
	batch.Put(collection, records)
	require.NoError(t, m.Apply(context.Background(), batch))
	m.applyCalls = 0
}

func (m *memStore) All(_ context.Context, collection string) ([]store.Record, error) {
	if m.panicOnRead {
		panic("store exploded")
	}
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.collections[collection]))
	for k := range m.collections[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]store.Record, 0, len(keys))
	for _, k := range keys {
		records = append(records, m.collections[collection][k])
	}
	return records, nil
}

func (m *memStore) Count(_ context.Context, collection string) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection]), nil
}

func (m *memStore) Apply(_ context.Context, batch *store.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++

	next := make(map[string]map[string]store.Record, len(m.collections))
	for name, records := range m.collections {
		copied := make(map[string]store.Record, len(records))
		for k, v := range records {
			copied[k] = v
		}
		next[name] = copied
	}

	for _, op := range batch.Ops {
		switch op.Kind {
		case store.OpClear:
			delete(next, op.Collection)
		case store.OpPut:
			if op.Collection == m.failPutOn {
				return errors.New("disk full")
			}
			if next[op.Collection] == nil {
				next[op.Collection] = make(map[string]store.Record)
			}
			for i, record := range op.Records {
				id, err := record.Key()
				if err != nil {
					return fmt.Errorf("%s[%d]: %w", op.Collection, i, err)
				}
				next[op.Collection][id] = record
			}
		}
	}

	m.collections = next
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, records := range m.collections {
		n += len(records)
	}
	return n
}

func (m *memStore) get(collection, id string) store.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collections[collection][id]
}

func draftRecord(id string) store.Record {
	return store.Record{
		"id":        id,
		"title":     "Backup Draft",
		"content":   "<p>content</p>",
		"status":    "in-progress",
		"wordCount": float64(1),
		"tags":      []interface{}{},
		"isLocked":  false,
		"createdAt": "2026-02-12T13:00:00.000Z",
	}
}

func settingsRecord() store.Record {
	return store.Record{
		"id":    "global",
		"theme": "light",
	}
}

func newTestClock() *testclock.Clock {
	return testclock.NewClock(testNow)
}

func newTestBuilder(st store.Store) *Builder {
	return NewBuilder(st, newTestClock(), "1.2.3")
}

// wellFormedEnvelope returns a valid envelope holding one draft and one settings row.
func wellFormedEnvelope() *Envelope {
	data := make(map[string][]Record)
	for _, c := range ManagedCollections() {
		data[c] = []Record{}
	}
	data[CollectionDrafts] = []Record{draftRecord("draft-1")}
	data[CollectionSettings] = []Record{settingsRecord()}

	return &Envelope{
		Metadata: Metadata{
			Version:      BackupVersion,
			CreatedAt:    "2026-02-12T13:00:00.000Z",
			AppVersion:   "1.2.3",
			TableCount:   ManagedTableCount,
			TotalRecords: 2,
		},
		Data: data,
	}
}

// fakeHost is a HostFileCapability recording its calls.
type fakeHost struct {
	mu          sync.Mutex
	location    string
	savePath    string
	saveErr     error
	loadContent []byte
	loadErr     error

	saved      [][]byte
	locations  []string
	maxBackups []int
}

func (h *fakeHost) SelectBackupLocation(context.Context) (string, error) {
	return h.location, nil
}

func (h *fakeHost) SaveBackup(_ context.Context, content []byte, location string, maxBackups int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, content)
	h.locations = append(h.locations, location)
	h.maxBackups = append(h.maxBackups, maxBackups)
	return h.savePath, h.saveErr
}

func (h *fakeHost) LoadBackup(context.Context) ([]byte, error) {
	return h.loadContent, h.loadErr
}

// fakeBrowser is a BrowserPrimitives recording downloads.
type fakeBrowser struct {
	downloads   map[string][]byte
	downloadErr error
	upload      []byte
	uploadErr   error
}

func (b *fakeBrowser) Download(_ context.Context, name string, content []byte) error {
	if b.downloadErr != nil {
		return b.downloadErr
	}
	if b.downloads == nil {
		b.downloads = make(map[string][]byte)
	}
	b.downloads[name] = content
	return nil
}

func (b *fakeBrowser) PickFile(context.Context) ([]byte, error) {
	return b.upload, b.uploadErr
}

func newTestService(t *testing.T, st store.Store, backend Backend, observers ...SaveObserver) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Store:      st,
		Backend:    backend,
		Clock:      newTestClock(),
		Logger:     logging.NewDiscardLogger(),
		AppVersion: "1.2.3",
		Observers:  observers,
	})
	require.NoError(t, err)
	return svc
}

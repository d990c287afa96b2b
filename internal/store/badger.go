package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"muwi-backup/internal/logging"
)

const (
	// DriverBadger names the embedded store driver.
	DriverBadger = "badger"

	badgerKeyPrefix = "rec/"
)

// BadgerConfig configures the embedded record store.
type BadgerConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	InMemory   bool   `mapstructure:"in_memory" yaml:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// BadgerStore keeps collections in an embedded BadgerDB instance.
// Keys have the form "rec/<collection>/<id>" and values hold the JSON record.
type BadgerStore struct {
	db     *badger.DB
	logger *logging.Logger

	// writes are serialized so the journaled fallback never interleaves with another batch
	mu sync.Mutex
}

type kv struct {
	key   []byte
	value []byte
}

// NewBadgerStore opens (or creates) an embedded record store.
func NewBadgerStore(config BadgerConfig, logger *logging.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if !config.InMemory && config.Path == "" {
		return nil, fmt.Errorf("badger store path is required")
	}

	path := config.Path
	if config.InMemory {
		path = ""
	}

	opts := badger.DefaultOptions(path).WithInMemory(config.InMemory)
	opts.Logger = nil
	opts.SyncWrites = config.SyncWrites

	start := time.Now()
	db, err := badger.Open(opts)
	logger.LogStoreConnection(DriverBadger, describeBadgerTarget(config), err == nil, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("open badger record store: %w", err)
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

func describeBadgerTarget(config BadgerConfig) string {
	if config.InMemory {
		return "memory"
	}
	return config.Path
}

// All returns every record of the collection in key order.
func (s *BadgerStore) All(ctx context.Context, collection string) ([]Record, error) {
	records := make([]Record, 0)
	prefix := collectionPrefix(collection)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				record, err := decodeRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}
	return records, nil
}

// Count returns the number of records in the collection.
func (s *BadgerStore) Count(ctx context.Context, collection string) (int, error) {
	count := 0
	prefix := collectionPrefix(collection)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count collection %s: %w", collection, err)
	}
	return count, nil
}

// Apply executes the batch in a single transaction. Batches too large for one
// transaction are written in chunks with a pre-image journal that is restored if
// any chunk fails.
func (s *BadgerStore) Apply(ctx context.Context, batch *Batch) (err error) {
	if batch == nil {
		return fmt.Errorf("batch cannot be nil")
	}

	start := time.Now()
	ops, err := encodeBatch(batch)
	defer func() {
		s.logger.LogStoreTransaction(DriverBadger, len(batch.Ops), batch.Len(), time.Since(start), err)
	}()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		return applyInTxn(ctx, txn, ops)
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		s.logger.WithField("records", batch.Len()).Debug("Batch exceeds transaction limits, using journaled write")
		err = s.applyJournaled(ctx, ops, batch.Collections())
	}
	return err
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func applyInTxn(ctx context.Context, txn *badger.Txn, ops []encodedOp) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch op.kind {
		case OpClear:
			keys, err := listKeys(txn, collectionPrefix(op.collection))
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
		case OpPut:
			for _, entry := range op.entries {
				if err := txn.Set(recordKey(op.collection, entry.id), entry.value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// applyJournaled writes the operations outside a single transaction. The prior
// contents of every touched collection are captured first and written back on failure.
func (s *BadgerStore) applyJournaled(ctx context.Context, ops []encodedOp, collections []string) error {
	journal, err := s.snapshot(collections)
	if err != nil {
		return fmt.Errorf("capture rollback journal: %w", err)
	}

	if err := s.writeOps(ctx, ops); err != nil {
		if rbErr := s.restoreSnapshot(collections, journal); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return nil
}

func (s *BadgerStore) writeOps(ctx context.Context, ops []encodedOp) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch op.kind {
		case OpClear:
			var keys [][]byte
			err := s.db.View(func(txn *badger.Txn) error {
				var err error
				keys, err = listKeys(txn, collectionPrefix(op.collection))
				return err
			})
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := wb.Delete(key); err != nil {
					return err
				}
			}
		case OpPut:
			for _, entry := range op.entries {
				if err := wb.Set(recordKey(op.collection, entry.id), entry.value); err != nil {
					return err
				}
			}
		}
	}
	return wb.Flush()
}

// snapshot copies every key/value pair of the collections.
func (s *BadgerStore) snapshot(collections []string) (map[string][]kv, error) {
	journal := make(map[string][]kv, len(collections))

	err := s.db.View(func(txn *badger.Txn) error {
		for _, collection := range collections {
			prefix := collectionPrefix(collection)
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				value, err := item.ValueCopy(nil)
				if err != nil {
					it.Close()
					return err
				}
				journal[collection] = append(journal[collection], kv{key: item.KeyCopy(nil), value: value})
			}
			it.Close()
		}
		return nil
	})
	return journal, err
}

// restoreSnapshot replaces the collections with the journaled contents.
func (s *BadgerStore) restoreSnapshot(collections []string, journal map[string][]kv) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, collection := range collections {
		var current [][]byte
		err := s.db.View(func(txn *badger.Txn) error {
			var err error
			current, err = listKeys(txn, collectionPrefix(collection))
			return err
		})
		if err != nil {
			return err
		}

		keep := make(map[string]bool, len(journal[collection]))
		for _, entry := range journal[collection] {
			keep[string(entry.key)] = true
		}
		for _, key := range current {
			if keep[string(key)] {
				continue
			}
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		for _, entry := range journal[collection] {
			if err := wb.Set(entry.key, entry.value); err != nil {
				return err
			}
		}
	}
	return wb.Flush()
}

// Helper methods

func collectionPrefix(collection string) []byte {
	return []byte(badgerKeyPrefix + collection + "/")
}

func recordKey(collection, id string) []byte {
	var buf bytes.Buffer
	buf.Write(collectionPrefix(collection))
	buf.WriteString(id)
	return buf.Bytes()
}

func listKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

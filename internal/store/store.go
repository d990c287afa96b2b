// Package store provides the record stores that hold MUWI's collections.
//
// A store keeps opaque JSON records grouped by collection name. Records are keyed by
// their "id" field; numeric ids are stored by their decimal text, so 1 and "1" name the
// same record. Writes are grouped into batches that a store applies atomically:
// either every operation of a batch is visible afterwards or none is.
package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Record is a single opaque record of a collection.
type Record map[string]interface{}

// KeyField is the record field used as the primary key.
const KeyField = "id"

// Key returns the primary key of the record as a string.
func (r Record) Key() (string, error) {
	raw, ok := r[KeyField]
	if !ok || raw == nil {
		return "", fmt.Errorf("record has no %q field", KeyField)
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("record has an empty %q field", KeyField)
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("record %q field has unsupported type %T", KeyField, raw)
	}
}

// OpKind identifies a batch operation.
type OpKind string

const (
	// OpClear removes every record of a collection.
	OpClear OpKind = "clear"
	// OpPut inserts records, replacing records with the same key.
	OpPut OpKind = "put"
)

// Op is one operation of a batch.
type Op struct {
	Kind       OpKind
	Collection string
	Records    []Record
}

// Batch is an ordered list of operations applied in one transaction.
type Batch struct {
	Ops []Op
}

// Clear appends a clear operation for the collection.
func (b *Batch) Clear(collection string) {
	b.Ops = append(b.Ops, Op{Kind: OpClear, Collection: collection})
}

// Put appends an upsert of the records into the collection.
func (b *Batch) Put(collection string, records []Record) {
	b.Ops = append(b.Ops, Op{Kind: OpPut, Collection: collection, Records: records})
}

// Collections returns the distinct collections touched by the batch in first-use order.
func (b *Batch) Collections() []string {
	seen := make(map[string]bool)
	var names []string
	for _, op := range b.Ops {
		if !seen[op.Collection] {
			seen[op.Collection] = true
			names = append(names, op.Collection)
		}
	}
	return names
}

// Len returns the number of records written by put operations.
func (b *Batch) Len() int {
	n := 0
	for _, op := range b.Ops {
		if op.Kind == OpPut {
			n += len(op.Records)
		}
	}
	return n
}

// Store is a collection-oriented record store.
type Store interface {
	// All returns every record of the collection ordered by key.
	All(ctx context.Context, collection string) ([]Record, error)
	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)
	// Apply executes the batch atomically.
	Apply(ctx context.Context, batch *Batch) error
	// Close releases the underlying resources.
	Close() error
}

// encodeRecord serializes a record for storage.
func encodeRecord(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// keyKind names the JSON type of a record's key.
func keyKind(r Record) string {
	if _, ok := r[KeyField].(string); ok {
		return "string"
	}
	return "number"
}

// decodeRecord parses a stored record.
func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return r, nil
}

type entry struct {
	id    string
	value []byte
}

type encodedOp struct {
	kind       OpKind
	collection string
	entries    []entry
}

// encodeBatch resolves keys and encodes values before any write happens.
func encodeBatch(batch *Batch) ([]encodedOp, error) {
	ops := make([]encodedOp, 0, len(batch.Ops))
	for _, op := range batch.Ops {
		encoded := encodedOp{kind: op.Kind, collection: op.Collection}
		if op.Kind == OpPut {
			encoded.entries = make([]entry, 0, len(op.Records))
			idKinds := make(map[string]string, len(op.Records))
			for i, record := range op.Records {
				id, err := record.Key()
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", op.Collection, i, err)
				}
				kind := keyKind(record)
				if seen, ok := idKinds[id]; ok && seen != kind {
					return nil, fmt.Errorf("%s[%d]: %s id %q collides with a %s id of the same text", op.Collection, i, kind, id, seen)
				}
				idKinds[id] = kind
				value, err := encodeRecord(record)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", op.Collection, i, err)
				}
				encoded.entries = append(encoded.entries, entry{id: id, value: value})
			}
		}
		ops = append(ops, encoded)
	}
	return ops, nil
}

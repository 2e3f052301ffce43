package badger

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{
		backend: backend,
	}
}

// Close releases resources. The backend is closed by its owner.
func (r *RecordRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *RecordRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// WithSnapshot delegates to the backend.
func (r *RecordRepository) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithSnapshot(ctx, fn)
}

// Generation delegates to the backend.
func (r *RecordRepository) Generation() uint64 {
	return r.backend.Generation()
}

// PutRecords upserts records by ID.
func (r *RecordRepository) PutRecords(ctx context.Context, records ...*core.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			if record.IndexedAt.IsZero() {
				record.IndexedAt = now
			}
			if err := tx.Set(makeRecordKey(record.Id), storage.MarshalIndexedRecord(record)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRecords removes records by their IDs.
func (r *RecordRepository) DeleteRecords(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeRecordKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecord retrieves a single record by ID.
func (r *RecordRepository) GetRecord(ctx context.Context, id core.ID) (*core.IndexedRecord, error) {
	var result *core.IndexedRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeRecordKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetRecords retrieves multiple records by their IDs, skipping missing ones.
func (r *RecordRepository) GetRecords(ctx context.Context, ids ...core.ID) ([]*core.IndexedRecord, error) {
	var result []*core.IndexedRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b *core.IndexedRecord) int {
		return strings.Compare(string(a.Id), string(b.Id))
	})
	return slices.CompactFunc(result, func(a, b *core.IndexedRecord) bool {
		return a.Id == b.Id
	}), nil
}

// ScanRecords calls fn for every stored record in ID order.
func (r *RecordRepository) ScanRecords(ctx context.Context, fn func(record *core.IndexedRecord) error) error {
	return r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(recordPrefix), false, func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.IndexedRecord
			if err := item.Value(func(val []byte) error {
				var unmarshalErr error
				record, unmarshalErr = storage.UnmarshalIndexedRecord(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			return fn(record)
		})
	})
}

// FilterRecords returns every record for which pred returns true.
func (r *RecordRepository) FilterRecords(ctx context.Context, pred func(record *core.IndexedRecord) bool) ([]*core.IndexedRecord, error) {
	var results []*core.IndexedRecord
	err := r.ScanRecords(ctx, func(record *core.IndexedRecord) error {
		if pred(record) {
			results = append(results, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListRecordIDs returns all record IDs in ID order.
func (r *RecordRepository) ListRecordIDs(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(recordPrefix), true, func(item *badger.Item) error {
			ids = append(ids, core.ID(item.Key()[len(recordPrefix):]))
			return nil
		})
	})
	return ids, err
}

// CountRecords returns the number of stored records.
func (r *RecordRepository) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(recordPrefix), true, func(*badger.Item) error {
			count++
			return nil
		})
	})
	return count, err
}

// readRecord reads a record from the transaction. Returns nil, nil if missing.
func readRecord(tx *badger.Txn, key []byte) (*core.IndexedRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.IndexedRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalIndexedRecord(val)
		return unmarshalErr
	})
	return record, err
}

package storage

import (
	"context"

	"github.com/poiesic/sift/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a read-write transaction.
	// Repository calls made with the context passed to fn join the transaction.
	// If fn returns an error, every write is rolled back.
	// If fn returns nil, the transaction is committed atomically.
	// fn may run more than once when the store detects a write conflict,
	// so it must not have side effects outside the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// WithSnapshot executes a function against a consistent read-only view.
	// Repository calls made with the context passed to fn read from the same snapshot.
	WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error

	// Generation returns a counter that changes after every committed write.
	Generation() uint64

	// Close closes the storage backend and releases resources.
	Close() error
}

// RecordRepository provides operations for managing indexed records.
type RecordRepository interface {
	Repository
	// PutRecords upserts one or more indexed records by ID.
	// Sets IndexedAt if not already set.
	// Does not touch the word index; the ingestion pipeline owns that.
	PutRecords(ctx context.Context, records ...*core.IndexedRecord) error

	// DeleteRecords removes records by their IDs.
	// Missing IDs are ignored.
	DeleteRecords(ctx context.Context, ids ...core.ID) error

	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.ID) (*core.IndexedRecord, error)

	// GetRecords retrieves multiple records by their IDs.
	// Returns only the records that exist (no error for missing records), in ID order.
	GetRecords(ctx context.Context, ids ...core.ID) ([]*core.IndexedRecord, error)

	// ScanRecords calls fn for every stored record in ID order.
	// Returning an error from fn stops the scan and returns that error.
	ScanRecords(ctx context.Context, fn func(record *core.IndexedRecord) error) error

	// FilterRecords scans every record and returns those matching pred.
	FilterRecords(ctx context.Context, pred func(record *core.IndexedRecord) bool) ([]*core.IndexedRecord, error)

	// ListRecordIDs returns the IDs of all stored records in ID order.
	ListRecordIDs(ctx context.Context) ([]core.ID, error)

	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int64, error)
}

// WordIndexRepository provides operations over the word and fragment indices.
type WordIndexRepository interface {
	Repository
	// GetWordEntries retrieves the entries for the given words.
	// Words without an entry are skipped.
	GetWordEntries(ctx context.Context, words ...string) ([]*core.WordEntry, error)

	// FindWordsByPrefix returns the entries of every word starting with prefix.
	FindWordsByPrefix(ctx context.Context, prefix string) ([]*core.WordEntry, error)

	// FindWordsByFragmentPrefix returns the distinct words having a fragment
	// that starts with prefix, i.e. words containing prefix.
	FindWordsByFragmentPrefix(ctx context.Context, prefix string) ([]string, error)

	// FindWordsByFragment returns the distinct words having fragment as one of
	// their fragments, i.e. words ending with fragment.
	FindWordsByFragment(ctx context.Context, fragment string) ([]string, error)

	// PutWordEntries upserts word entries. Fragment index keys are written
	// the first time a word is stored.
	PutWordEntries(ctx context.Context, entries ...*core.WordEntry) error

	// DeleteWordEntries removes word entries and their fragment index keys.
	// Missing words are ignored.
	DeleteWordEntries(ctx context.Context, words ...string) error

	// CountWords returns the number of distinct indexed words.
	CountWords(ctx context.Context) (int64, error)

	// ClearWordIndex drops every word entry and fragment key.
	// It is not transactional and must not run concurrently with ingestion.
	ClearWordIndex(ctx context.Context) error
}

// MetaRepository persists index metadata.
type MetaRepository interface {
	// SaveMeta persists the index metadata.
	SaveMeta(ctx context.Context, meta *core.IndexMeta) error

	// LoadMeta retrieves the index metadata.
	// Returns nil, nil if none has been saved.
	LoadMeta(ctx context.Context) (*core.IndexMeta, error)
}

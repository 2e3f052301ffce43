package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/sift/storage"
)

const (
	// DefaultMaxConflictRetries bounds how often a conflicting transaction is re-run.
	DefaultMaxConflictRetries = 5
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db         *badger.DB
	logger     *slog.Logger
	maxRetries int
	generation atomic.Uint64
}

// BackendOption configures a Backend.
type BackendOption func(*backendConfig)

type backendConfig struct {
	logger       *slog.Logger
	memTableSize int64
	maxRetries   int
}

// WithBackendLogger sets the logger used by the backend and by Badger itself.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(c *backendConfig) {
		c.logger = logger
	}
}

// WithMemTableSize sets Badger's memtable size. Larger memtables allow
// larger transactions.
func WithMemTableSize(size int64) BackendOption {
	return func(c *backendConfig) {
		c.memTableSize = size
	}
}

// WithMaxConflictRetries sets how many times a write transaction is re-run
// after a conflict before storage.ErrConflict is returned.
func WithMaxConflictRetries(n int) BackendOption {
	return func(c *backendConfig) {
		c.maxRetries = n
	}
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. filePath is ignored when inMemory is set.
func OpenBackend(filePath string, inMemory bool, opts ...BackendOption) (*Backend, error) {
	cfg := backendConfig{
		logger:     slog.Default(),
		maxRetries: DefaultMaxConflictRetries,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var bopts badger.Options
	if inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(filePath); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(filePath)
	}

	bopts.Logger = &badgerLoggerAdapter{logger: cfg.logger.With("component", "badger")}
	bopts.Compression = options.None
	if cfg.memTableSize > 0 {
		bopts = bopts.WithMemTableSize(cfg.memTableSize)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:         db,
		logger:     cfg.logger,
		maxRetries: max(cfg.maxRetries, 0),
	}, nil
}

func ensureDir(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(filePath, 0755); err != nil {
			return err
		}
		if info, err = os.Stat(filePath); err != nil {
			return err
		}
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filePath)
	}
	return nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// Generation returns a counter incremented after every committed write.
func (b *Backend) Generation() uint64 {
	return b.generation.Load()
}

type txnKey struct{}

type txnState struct {
	txn    *badger.Txn
	update bool
}

func txnFromContext(ctx context.Context) (*txnState, bool) {
	st, ok := ctx.Value(txnKey{}).(*txnState)
	return st, ok
}

// WithTransaction executes fn within a read-write transaction carried by the
// context handed to fn. Nested calls join the outer transaction.
// Implements storage.Repository.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if st, ok := txnFromContext(ctx); ok {
		if !st.update {
			return storage.ErrReadOnlyTransaction
		}
		return fn(ctx)
	}
	return b.runUpdate(ctx, func(txn *badger.Txn) error {
		return fn(context.WithValue(ctx, txnKey{}, &txnState{txn: txn, update: true}))
	})
}

// WithSnapshot executes fn against a read-only snapshot carried by the
// context handed to fn. Inside an existing transaction fn reuses it.
// Implements storage.Repository.
func (b *Backend) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txnFromContext(ctx); ok {
		return fn(ctx)
	}
	if b.IsClosed() {
		return storage.ErrStorageClosed
	}
	txn := b.db.NewTransaction(false)
	defer txn.Discard()
	return fn(context.WithValue(ctx, txnKey{}, &txnState{txn: txn}))
}

// view runs fn in the context's transaction, or in a fresh read-only one.
func (b *Backend) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if st, ok := txnFromContext(ctx); ok {
		return fn(st.txn)
	}
	if b.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.View(fn)
}

// update runs fn in the context's read-write transaction, or in a fresh one
// that is committed when fn succeeds.
func (b *Backend) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if st, ok := txnFromContext(ctx); ok {
		if !st.update {
			return storage.ErrReadOnlyTransaction
		}
		return mapTxnErr(fn(st.txn))
	}
	return b.runUpdate(ctx, fn)
}

// runUpdate runs fn in a new read-write transaction, re-running it when the
// commit hits a conflict.
func (b *Backend) runUpdate(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if b.IsClosed() {
		return storage.ErrStorageClosed
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.tryUpdate(fn)
		if err == nil {
			b.generation.Add(1)
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return mapTxnErr(err)
		}
		if attempt >= b.maxRetries {
			return fmt.Errorf("%w: gave up after %d attempts: %w", storage.ErrConflict, attempt+1, err)
		}
		b.logger.Debug("retrying conflicting transaction", "attempt", attempt+1)
	}
}

func (b *Backend) tryUpdate(fn func(txn *badger.Txn) error) error {
	txn := b.db.NewTransaction(true)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

func mapTxnErr(err error) error {
	if err != nil && errors.Is(err, badger.ErrTxnTooBig) && !errors.Is(err, storage.ErrBatchTooLarge) {
		return fmt.Errorf("%w: %w", storage.ErrBatchTooLarge, err)
	}
	return err
}

// dropPrefixes removes every key under the given prefixes. It is not
// transactional; the generation counter still advances.
func (b *Backend) dropPrefixes(prefixes ...[]byte) error {
	if b.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := b.db.DropPrefix(prefixes...); err != nil {
		return err
	}
	b.generation.Add(1)
	return nil
}

// scanPrefix iterates keys under prefix. When keysOnly is set, values are not
// prefetched. Returning errStopScan from fn ends the scan without error.
func scanPrefix(txn *badger.Txn, prefix []byte, keysOnly bool, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !keysOnly
	iter := txn.NewIterator(opts)
	defer iter.Close()

	for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
		if err := fn(iter.Item()); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

var errStopScan = errors.New("stop scan")

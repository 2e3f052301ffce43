package badger

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
	"github.com/poiesic/sift/text"
)

// WordIndexRepository implements storage.WordIndexRepository for BadgerDB.
//
// Each word is stored once under its word key together with its postings.
// Every suffix of the word gets a fragment key whose value is the word, so
// substring lookups reduce to prefix scans over fragment keys.
type WordIndexRepository struct {
	backend *Backend
}

var _ storage.WordIndexRepository = (*WordIndexRepository)(nil)

// NewWordIndexRepository creates a new WordIndexRepository.
func NewWordIndexRepository(backend *Backend) *WordIndexRepository {
	return &WordIndexRepository{
		backend: backend,
	}
}

// Close releases resources. The backend is closed by its owner.
func (r *WordIndexRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *WordIndexRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// WithSnapshot delegates to the backend.
func (r *WordIndexRepository) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithSnapshot(ctx, fn)
}

// Generation delegates to the backend.
func (r *WordIndexRepository) Generation() uint64 {
	return r.backend.Generation()
}

// GetWordEntries retrieves the entries of the given words, skipping unknown ones.
func (r *WordIndexRepository) GetWordEntries(ctx context.Context, words ...string) ([]*core.WordEntry, error) {
	var result []*core.WordEntry
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		for _, word := range words {
			entry, err := readWordEntry(tx, word)
			if err != nil {
				return err
			}
			if entry != nil {
				result = append(result, entry)
			}
		}
		return nil
	})
	return result, err
}

// FindWordsByPrefix returns the entries of every word starting with prefix.
func (r *WordIndexRepository) FindWordsByPrefix(ctx context.Context, prefix string) ([]*core.WordEntry, error) {
	var result []*core.WordEntry
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeWordKey(prefix), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				entry, err := storage.UnmarshalWordEntry(val)
				if err != nil {
					return err
				}
				result = append(result, entry)
				return nil
			})
		})
	})
	return result, err
}

// FindWordsByFragmentPrefix returns the distinct words containing prefix.
func (r *WordIndexRepository) FindWordsByFragmentPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.collectFragmentWords(ctx, makeFragmentScanKey(prefix), nil)
}

// FindWordsByFragment returns the distinct words ending with fragment.
func (r *WordIndexRepository) FindWordsByFragment(ctx context.Context, fragment string) ([]string, error) {
	return r.collectFragmentWords(ctx, makeExactFragmentScanKey(fragment), func(word string) bool {
		return strings.HasSuffix(word, fragment)
	})
}

func (r *WordIndexRepository) collectFragmentWords(ctx context.Context, scanKey []byte, keep func(word string) bool) ([]string, error) {
	seen := make(map[string]struct{})
	var words []string
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, scanKey, false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				word := string(val)
				if keep != nil && !keep(word) {
					return nil
				}
				if _, ok := seen[word]; !ok {
					seen[word] = struct{}{}
					words = append(words, word)
				}
				return nil
			})
		})
	})
	return words, err
}

// PutWordEntries upserts word entries. A word seen for the first time also
// gets its fragment keys.
func (r *WordIndexRepository) PutWordEntries(ctx context.Context, entries ...*core.WordEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, entry := range entries {
			key := makeWordKey(entry.Word)
			_, err := tx.Get(key)
			isNew := errors.Is(err, badger.ErrKeyNotFound)
			if err != nil && !isNew {
				return err
			}
			if len(entry.Fragments) == 0 {
				entry.Fragments = text.Fragments(entry.Word)
			}
			if err := tx.Set(key, storage.MarshalWordEntry(entry)); err != nil {
				return err
			}
			if !isNew {
				continue
			}
			word := []byte(entry.Word)
			for _, frag := range entry.Fragments {
				if err := tx.Set(makeFragmentKey(frag, entry.Word), word); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteWordEntries removes word entries and their fragment keys.
func (r *WordIndexRepository) DeleteWordEntries(ctx context.Context, words ...string) error {
	if len(words) == 0 {
		return nil
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, word := range words {
			entry, err := readWordEntry(tx, word)
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}
			frags := entry.Fragments
			if len(frags) == 0 {
				frags = text.Fragments(word)
			}
			for _, frag := range frags {
				if err := tx.Delete(makeFragmentKey(frag, word)); err != nil {
					return err
				}
			}
			if err := tx.Delete(makeWordKey(word)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountWords returns the number of distinct indexed words.
func (r *WordIndexRepository) CountWords(ctx context.Context) (int64, error) {
	var count int64
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(wordPrefix), true, func(*badger.Item) error {
			count++
			return nil
		})
	})
	return count, err
}

// ClearWordIndex drops every word entry and fragment key.
func (r *WordIndexRepository) ClearWordIndex(ctx context.Context) error {
	if _, ok := txnFromContext(ctx); ok {
		return storage.ErrInTransaction
	}
	return r.backend.dropPrefixes([]byte(wordPrefix), []byte(fragmentPrefix))
}

// readWordEntry reads a word entry from the transaction. Returns nil, nil if missing.
func readWordEntry(tx *badger.Txn, word string) (*core.WordEntry, error) {
	item, err := tx.Get(makeWordKey(word))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.WordEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalWordEntry(val)
		return unmarshalErr
	})
	return entry, err
}

package badger

import "github.com/poiesic/sift/core"

// Key prefixes for different data types
const (
	recordPrefix   = "rec:"
	wordPrefix     = "wrd:"
	fragmentPrefix = "frg:"
	metaKey        = "meta:index"

	// fragmentSep separates a fragment from its owning word so that an exact
	// fragment lookup is a prefix scan on fragment+fragmentSep.
	fragmentSep = '\x00'
)

// makeRecordKey generates a key for a record by ID.
func makeRecordKey(id core.ID) []byte {
	return concatKey(recordPrefix, string(id))
}

// makeWordKey generates a key for a word entry.
func makeWordKey(word string) []byte {
	return concatKey(wordPrefix, word)
}

// makeFragmentKey generates a composite key for the fragment index.
// Format: prefix fragment \x00 word. The value holds the word.
func makeFragmentKey(fragment, word string) []byte {
	buf := make([]byte, 0, len(fragmentPrefix)+len(fragment)+1+len(word))
	buf = append(buf, fragmentPrefix...)
	buf = append(buf, fragment...)
	buf = append(buf, fragmentSep)
	return append(buf, word...)
}

// makeFragmentScanKey generates the scan prefix for fragments starting with prefix.
func makeFragmentScanKey(prefix string) []byte {
	return concatKey(fragmentPrefix, prefix)
}

// makeExactFragmentScanKey generates the scan prefix for exactly fragment.
func makeExactFragmentScanKey(fragment string) []byte {
	return append(concatKey(fragmentPrefix, fragment), fragmentSep)
}

func concatKey(prefix, rest string) []byte {
	buf := make([]byte, 0, len(prefix)+len(rest))
	buf = append(buf, prefix...)
	return append(buf, rest...)
}

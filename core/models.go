package core

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is the caller-assigned identifier of a record.
// Re-ingesting a record with an existing ID replaces the prior version.
type ID string

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return ID(hex.EncodeToString(h.Sum(nil)))
}

// Field is a single named, text-bearing attribute of a record.
type Field struct {
	Name  string
	Value string
}

// Record is an opaque structured entity made of ordered text fields.
type Record struct {
	Id     ID
	Fields []Field
}

// NewRecord builds a record from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewRecord(id ID, pairs ...string) *Record {
	r := &Record{Id: id, Fields: make([]Field, 0, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Fields = append(r.Fields, Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return r
}

// Field returns the value of the named field and whether it exists.
func (r *Record) Field(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// RawText joins all field values with a single space, in field order.
// Searches verify candidates against this text.
func (r *Record) RawText() string {
	switch len(r.Fields) {
	case 0:
		return ""
	case 1:
		return r.Fields[0].Value
	}
	var sb strings.Builder
	for i, f := range r.Fields {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.Value)
	}
	return sb.String()
}

// IndexedRecord is a record persisted together with its word set.
type IndexedRecord struct {
	Record
	Words     []string  // Sorted, distinct normalized tokens of all fields
	IndexedAt time.Time // When this version was written
}

// WordEntry is the word index value for one normalized word.
type WordEntry struct {
	Word      string
	Postings  []ID     // Sorted set of records whose word set contains Word
	Fragments []string // All suffixes of Word, longest first
}

// IndexSchemaVersion is the layout version of the word and fragment indices.
// Stores built under another version must be reindexed.
const IndexSchemaVersion = 1

// IndexMeta describes the state of the derived indices.
type IndexMeta struct {
	SchemaVersion int
	Records       int64
	Words         int64
	RebuiltAt     time.Time
}

package storage

import (
	"testing"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"empty ID", core.ID("")},
		{"short ID", core.ID("1")},
		{"uuid ID", core.ID("0b5b2b2e-5b61-4d6a-9f59-2f5b8c8c1e27")},
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalIndexedRecord(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	record := &core.IndexedRecord{
		Record: *core.NewRecord("42",
			"name", "Mario Rossi",
			"address", "Via Roma 1",
			"note", "",
		),
		Words:     []string{"1", "mario", "roma", "rossi", "via"},
		IndexedAt: now,
	}

	decoded, err := UnmarshalIndexedRecord(MarshalIndexedRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record.Id, decoded.Id)
	assert.Equal(t, record.Fields, decoded.Fields)
	assert.Equal(t, record.Words, decoded.Words)
	assert.True(t, record.IndexedAt.Equal(decoded.IndexedAt))
}

func TestMarshalUnmarshalIndexedRecord_ZeroTime(t *testing.T) {
	record := &core.IndexedRecord{Record: *core.NewRecord("1", "name", "x")}

	decoded, err := UnmarshalIndexedRecord(MarshalIndexedRecord(record))
	require.NoError(t, err)
	assert.True(t, decoded.IndexedAt.IsZero())
	assert.Empty(t, decoded.Words)
}

func TestUnmarshalIndexedRecord_Truncated(t *testing.T) {
	record := &core.IndexedRecord{
		Record:    *core.NewRecord("42", "name", "Mario Rossi"),
		Words:     []string{"mario", "rossi"},
		IndexedAt: time.Now().UTC(),
	}
	data := MarshalIndexedRecord(record)

	for _, cut := range []int{0, 1, len(data) / 2, len(data) - 1} {
		_, err := UnmarshalIndexedRecord(data[:cut])
		assert.ErrorIs(t, err, ErrSerializationFailed, "cut at %d", cut)
	}
}

func TestMarshalUnmarshalWordEntry(t *testing.T) {
	entry := &core.WordEntry{
		Word:      "rossi",
		Postings:  []core.ID{"1", "17", "2"},
		Fragments: []string{"rossi", "ossi", "ssi", "si", "i"},
	}

	decoded, err := UnmarshalWordEntry(MarshalWordEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestMarshalUnmarshalIndexMeta(t *testing.T) {
	meta := &core.IndexMeta{
		SchemaVersion: 3,
		Records:       10000,
		Words:         48213,
		RebuiltAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalIndexMeta(MarshalIndexMeta(meta))
	require.NoError(t, err)
	assert.Equal(t, meta.SchemaVersion, decoded.SchemaVersion)
	assert.Equal(t, meta.Records, decoded.Records)
	assert.Equal(t, meta.Words, decoded.Words)
	assert.True(t, meta.RebuiltAt.Equal(decoded.RebuiltAt))
}

func TestUnmarshalWordEntry_Invalid(t *testing.T) {
	_, err := UnmarshalWordEntry([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted model types. Field order is part of the
// on-disk format; append new fields at the end and bump the schema version.
var (
	IDMUS            = idMUS{}
	FieldMUS         = fieldMUS{}
	RecordMUS        = recordMUS{}
	IndexedRecordMUS = indexedRecordMUS{}
	WordEntryMUS     = wordEntryMUS{}
	IndexMetaMUS     = indexMetaMUS{}
)

var (
	idsMUS     = sliceMUS[ID]{elem: IDMUS}
	stringsMUS = sliceMUS[string]{elem: ord.String}
	fieldsMUS  = sliceMUS[Field]{elem: FieldMUS}
	timeMUS    = microTimeMUS{}
)

type elemSerializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
	Skip(bs []byte) (n int, err error)
}

// sliceMUS encodes a varint length followed by each element.
// Every element encodes to at least one byte.
type sliceMUS[T any] struct {
	elem elemSerializer[T]
}

func (s sliceMUS[T]) Marshal(v []T, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, e := range v {
		n += s.elem.Marshal(e, bs[n:])
	}
	return n
}

func (s sliceMUS[T]) Unmarshal(bs []byte) (v []T, n int, err error) {
	var length uint64
	length, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	if length > uint64(len(bs)-n) {
		err = ErrMalformedEncoding
		return
	}
	if length == 0 {
		return
	}
	v = make([]T, length)
	var n1 int
	for i := range v {
		v[i], n1, err = s.elem.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (s sliceMUS[T]) Size(v []T) (size int) {
	size = varint.Uint64.Size(uint64(len(v)))
	for _, e := range v {
		size += s.elem.Size(e)
	}
	return size
}

func (s sliceMUS[T]) Skip(bs []byte) (n int, err error) {
	var length uint64
	length, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	if length > uint64(len(bs)-n) {
		err = ErrMalformedEncoding
		return
	}
	var n1 int
	for i := uint64(0); i < length; i++ {
		n1, err = s.elem.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

// microTimeMUS stores times as Unix microseconds in UTC.
type microTimeMUS struct{}

func (microTimeMUS) Marshal(v time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(v.UnixMicro(), bs)
}

func (microTimeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	var micros int64
	micros, n, err = varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	v = time.UnixMicro(micros).UTC()
	return
}

func (microTimeMUS) Size(v time.Time) (size int) {
	return varint.Int64.Size(v.UnixMicro())
}

func (microTimeMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int64.Skip(bs)
}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return ord.String.Marshal(string(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	var s string
	s, n, err = ord.String.Unmarshal(bs)
	v = ID(s)
	return
}

func (idMUS) Size(v ID) (size int) {
	return ord.String.Size(string(v))
}

func (idMUS) Skip(bs []byte) (n int, err error) {
	return ord.String.Skip(bs)
}

type fieldMUS struct{}

func (fieldMUS) Marshal(v Field, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	return n + ord.String.Marshal(v.Value, bs[n:])
}

func (fieldMUS) Unmarshal(bs []byte) (v Field, n int, err error) {
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Value, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (fieldMUS) Size(v Field) (size int) {
	return ord.String.Size(v.Name) + ord.String.Size(v.Value)
}

func (fieldMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	return
}

type recordMUS struct{}

func (recordMUS) Marshal(v Record, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	return n + fieldsMUS.Marshal(v.Fields, bs[n:])
}

func (recordMUS) Unmarshal(bs []byte) (v Record, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Fields, n1, err = fieldsMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (recordMUS) Size(v Record) (size int) {
	return IDMUS.Size(v.Id) + fieldsMUS.Size(v.Fields)
}

func (recordMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = fieldsMUS.Skip(bs[n:])
	n += n1
	return
}

type indexedRecordMUS struct{}

func (indexedRecordMUS) Marshal(v IndexedRecord, bs []byte) (n int) {
	n = RecordMUS.Marshal(v.Record, bs)
	n += stringsMUS.Marshal(v.Words, bs[n:])
	return n + timeMUS.Marshal(v.IndexedAt, bs[n:])
}

func (indexedRecordMUS) Unmarshal(bs []byte) (v IndexedRecord, n int, err error) {
	v.Record, n, err = RecordMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Words, n1, err = stringsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.IndexedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (indexedRecordMUS) Size(v IndexedRecord) (size int) {
	return RecordMUS.Size(v.Record) + stringsMUS.Size(v.Words) + timeMUS.Size(v.IndexedAt)
}

type wordEntryMUS struct{}

func (wordEntryMUS) Marshal(v WordEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.Word, bs)
	n += idsMUS.Marshal(v.Postings, bs[n:])
	return n + stringsMUS.Marshal(v.Fragments, bs[n:])
}

func (wordEntryMUS) Unmarshal(bs []byte) (v WordEntry, n int, err error) {
	v.Word, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Postings, n1, err = idsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Fragments, n1, err = stringsMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (wordEntryMUS) Size(v WordEntry) (size int) {
	return ord.String.Size(v.Word) + idsMUS.Size(v.Postings) + stringsMUS.Size(v.Fragments)
}

type indexMetaMUS struct{}

func (indexMetaMUS) Marshal(v IndexMeta, bs []byte) (n int) {
	n = varint.Int64.Marshal(int64(v.SchemaVersion), bs)
	n += varint.Int64.Marshal(v.Records, bs[n:])
	n += varint.Int64.Marshal(v.Words, bs[n:])
	return n + timeMUS.Marshal(v.RebuiltAt, bs[n:])
}

func (indexMetaMUS) Unmarshal(bs []byte) (v IndexMeta, n int, err error) {
	var version int64
	version, n, err = varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.SchemaVersion = int(version)
	var n1 int
	v.Records, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Words, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RebuiltAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (indexMetaMUS) Size(v IndexMeta) (size int) {
	return varint.Int64.Size(int64(v.SchemaVersion)) +
		varint.Int64.Size(v.Records) +
		varint.Int64.Size(v.Words) +
		timeMUS.Size(v.RebuiltAt)
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/poiesic/sift/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalIndexedRecord serializes an IndexedRecord to bytes.
func MarshalIndexedRecord(record *core.IndexedRecord) []byte {
	buf := make([]byte, core.IndexedRecordMUS.Size(*record))
	core.IndexedRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalIndexedRecord deserializes an IndexedRecord from bytes.
func UnmarshalIndexedRecord(data []byte) (*core.IndexedRecord, error) {
	record, _, err := core.IndexedRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: record: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalWordEntry serializes a WordEntry to bytes.
func MarshalWordEntry(entry *core.WordEntry) []byte {
	buf := make([]byte, core.WordEntryMUS.Size(*entry))
	core.WordEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalWordEntry deserializes a WordEntry from bytes.
func UnmarshalWordEntry(data []byte) (*core.WordEntry, error) {
	entry, _, err := core.WordEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: word entry: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}

// MarshalIndexMeta serializes an IndexMeta to bytes.
func MarshalIndexMeta(meta *core.IndexMeta) []byte {
	buf := make([]byte, core.IndexMetaMUS.Size(*meta))
	core.IndexMetaMUS.Marshal(*meta, buf)
	return buf
}

// UnmarshalIndexMeta deserializes an IndexMeta from bytes.
func UnmarshalIndexMeta(data []byte) (*core.IndexMeta, error) {
	meta, _, err := core.IndexMetaMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: index meta: %w", ErrSerializationFailed, err)
	}
	return &meta, nil
}

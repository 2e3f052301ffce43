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

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates that a transaction kept conflicting with
	// concurrent writers and gave up after the configured retries.
	ErrConflict = errors.New("transaction conflict")

	// ErrBatchTooLarge indicates that a single transaction exceeded the
	// store's size limits. Nothing was written; split the batch.
	ErrBatchTooLarge = errors.New("batch too large for a single transaction")

	// ErrReadOnlyTransaction indicates a write was attempted inside a snapshot.
	ErrReadOnlyTransaction = errors.New("write attempted in read-only transaction")

	// ErrInTransaction indicates a non-transactional operation was called
	// with a transactional context.
	ErrInTransaction = errors.New("operation not allowed inside a transaction")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)

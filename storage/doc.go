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


// Package storage provides the storage abstraction layer for sift.
//
// This package defines repository interfaces that decouple the record store
// and the derived word index from business logic. The ingestion pipeline and
// the searcher only see these interfaces; storage/badger implements them.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - Repository: transactions, snapshots and the write generation counter
//   - RecordRepository: primary store of indexed records keyed by ID
//   - WordIndexRepository: word entries (postings) and the fragment index
//   - MetaRepository: index metadata used by reindexing
//
// # Transactions
//
// WithTransaction hands fn a context carrying a read-write transaction.
// Repository calls made with that context join it, so records, word entries
// and fragment keys commit or roll back together:
//
//	err := records.WithTransaction(ctx, func(ctx context.Context) error {
//	    if err := records.PutRecords(ctx, rec); err != nil {
//	        return err
//	    }
//	    return words.PutWordEntries(ctx, entries...)
//	})
//
// WithSnapshot does the same for reads: every call inside fn sees the same
// committed state.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	records, words, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. A transactional context must
// not be shared between goroutines.
//
// # Context Support
//
// All repository methods accept context.Context. Pass context.Background()
// for operations without specific timeout requirements.
package storage

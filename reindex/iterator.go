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


package reindex

import (
	"context"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

const (
	// DefaultBatchSize is the default number of ids in each batch
	DefaultBatchSize = 500
)

// RecordIterator iterates over all stored record ids in id order, in batches.
type RecordIterator struct {
	repo      storage.RecordRepository
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of ids in each batch (DefaultBatchSize if <= 0)
func NewRecordIterator(repo storage.RecordRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with each batch of ids. The id list is taken once up
// front, so records added during the iteration are not visited. Records are
// not loaded here; the consumer reads them when it writes. Iteration stops on
// the first error from fn. Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]core.ID) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := it.repo.ListRecordIDs(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(ids); start += it.batchSize {
		end := min(start+it.batchSize, len(ids))
		if err := fn(ids[start:end:end]); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
	"github.com/poiesic/sift/storage"
	"golang.org/x/sync/errgroup"
)

// Ingester restores the postings of stored records, reading each record
// in the same transaction that writes its postings.
// *ingestion.Pipeline satisfies it.
type Ingester interface {
	Rebuild(ctx context.Context, ids ...core.ID) (*ingestion.Result, error)
}

// Config holds configuration for the reindex operation.
type Config struct {
	// BatchSize is the number of records rebuilt per transaction
	BatchSize int

	// Concurrency is the number of batches prepared at once
	Concurrency int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		Concurrency:    4,
		ReportInterval: 1000,
		MaxRetries:     3,
		RetryDelay:     100 * time.Millisecond,
	}
}

// Report summarizes a completed rebuild.
type Report struct {
	Records int
	Words   int64
	Took    time.Duration
}

// Reindexer rebuilds the word and fragment indices from the stored records.
type Reindexer struct {
	records  storage.RecordRepository
	words    storage.WordIndexRepository
	meta     storage.MetaRepository
	ingester Ingester
	config   *Config
	progress io.Writer
	iterator *RecordIterator
	logger   *slog.Logger
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr, may be nil)
func NewReindexer(
	records storage.RecordRepository,
	words storage.WordIndexRepository,
	meta storage.MetaRepository,
	ingester Ingester,
	config *Config,
	progress io.Writer,
) (*Reindexer, error) {
	if records == nil {
		return nil, ErrRecordRepositoryRequired
	}
	if words == nil {
		return nil, ErrWordRepositoryRequired
	}
	if meta == nil {
		return nil, ErrMetaRepositoryRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		records:  records,
		words:    words,
		meta:     meta,
		ingester: ingester,
		config:   config,
		progress: progress,
		iterator: NewRecordIterator(records, config.BatchSize),
		logger:   slog.Default().With("component", "reindex"),
	}, nil
}

// Run clears the word and fragment indices, rebuilds the postings of every
// stored record and saves fresh index metadata. Writers may keep ingesting
// while Run is in progress; records are read at write time, so newer versions
// are never replaced by the copy Run started from. If Run fails part way, the indices cover
// only the batches written so far and Run should be repeated; the metadata is
// written last, so NeedsReindex keeps reporting true until a run completes.
func (r *Reindexer) Run(ctx context.Context) (*Report, error) {
	total, err := r.records.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	if err := r.words.ClearWordIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear word index: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in database (0 records)\n")
	} else {
		fmt.Fprintf(r.progress, "Starting reindex of %d records (batch size: %d)\n",
			total, r.iterator.batchSize)
	}

	tracker := NewProgressTracker(r.progress, int(total), r.config.ReportInterval)
	tracker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.config.Concurrency, 1))

	err = r.iterator.ForEach(gctx, func(batch []core.ID) error {
		g.Go(func() error {
			rebuilt, err := r.rebuild(gctx, batch)
			if err != nil {
				return err
			}
			tracker.Increment(rebuilt)
			return nil
		})
		return nil
	})
	if waitErr := g.Wait(); waitErr != nil {
		// The batch failure is the cause; the iterator only saw the cancellation.
		err = waitErr
	}
	if err != nil {
		return nil, err
	}

	processed := tracker.Current()
	if total > 0 {
		tracker.Finish()
	}

	words, err := r.words.CountWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count words: %w", err)
	}
	records, err := r.records.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	meta := &core.IndexMeta{
		SchemaVersion: core.IndexSchemaVersion,
		Records:       records,
		Words:         words,
		RebuiltAt:     time.Now().UTC(),
	}
	if err := r.meta.SaveMeta(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to save index metadata: %w", err)
	}

	elapsed := tracker.Elapsed()
	if total > 0 {
		fmt.Fprintf(r.progress, "Reindex complete. Processed %d records, %d words in %v\n",
			processed, words, elapsed.Round(time.Millisecond))
	}
	r.logger.Info("reindex complete", "records", processed, "words", words, "took", elapsed)

	return &Report{Records: processed, Words: words, Took: elapsed}, nil
}

func (r *Reindexer) rebuild(ctx context.Context, batch []core.ID) (int, error) {
	var result *ingestion.Result
	err := RetryWithBackoff(ctx, func() error {
		var err error
		result, err = r.ingester.Rebuild(ctx, batch...)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to reindex batch starting at %s: %w", batch[0], err)
	}
	return result.Written, nil
}

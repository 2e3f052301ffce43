package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/metrics"
	"github.com/poiesic/sift/storage"
	"github.com/poiesic/sift/text"
)

const (
	// DefaultParallelThreshold is the batch size from which word extraction
	// is spread over the worker pool.
	DefaultParallelThreshold = 256
)

// Pipeline writes records and keeps the word and fragment indices in step
// with them. Every batch is applied in a single storage transaction.
type Pipeline struct {
	recordRepository  storage.RecordRepository
	wordRepository    storage.WordIndexRepository
	extractPool       *ants.Pool
	writerPool        *ants.Pool
	parallelThreshold int
	metrics           *metrics.Metrics
	logger            *slog.Logger

	// mu serializes writers of this pipeline.
	mu sync.Mutex
}

// Result describes the effect of one committed batch.
type Result struct {
	Written      int // Records stored
	Deleted      int // Records removed
	WordsCreated int // Words that gained their first posting
	WordsUpdated int // Existing words whose entry was rewritten
	WordsRemoved int // Words that lost their last posting
	Took         time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for word extraction.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.extractPool != nil {
			p.extractPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.extractPool = pool
		return nil
	}
}

// WithParallelThreshold sets the batch size from which word extraction runs
// on the worker pool. Smaller batches are extracted inline.
func WithParallelThreshold(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.parallelThreshold = n
		return nil
	}
}

// WithMetrics records ingestion metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	recordRepository storage.RecordRepository,
	wordRepository storage.WordIndexRepository,
	opts ...Option,
) (*Pipeline, error) {
	if recordRepository == nil {
		return nil, ErrRecordRepositoryRequired
	}
	if wordRepository == nil {
		return nil, ErrWordRepositoryRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	extractPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// One async writer; IngestAsync callers wait while it is busy.
	writerPool, err := ants.NewPool(1)
	if err != nil {
		extractPool.Release()
		return nil, err
	}

	p := &Pipeline{
		recordRepository:  recordRepository,
		wordRepository:    wordRepository,
		extractPool:       extractPool,
		writerPool:        writerPool,
		parallelThreshold: DefaultParallelThreshold,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Ingest validates and stores records, updating the word and fragment
// indices in the same transaction. Either every record of the batch is
// applied or none is. Re-ingesting an existing id replaces the prior version
// and removes the id from words it no longer contains.
func (p *Pipeline) Ingest(ctx context.Context, records ...*core.Record) error {
	_, err := p.IngestBatch(ctx, records...)
	return err
}

// IngestBatch is Ingest returning the batch Result.
func (p *Pipeline) IngestBatch(ctx context.Context, records ...*core.Record) (*Result, error) {
	start := time.Now()

	for _, r := range records {
		if err := core.ValidateRecord(r); err != nil {
			return nil, err
		}
	}
	records = collapseDuplicates(records)
	if len(records) == 0 {
		return &Result{}, nil
	}

	indexed := p.buildIndexedRecords(records)

	p.mu.Lock()
	defer p.mu.Unlock()

	var result *Result
	err := p.recordRepository.WithTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		result, txErr = p.applyUpserts(ctx, indexed)
		return txErr
	})
	took := time.Since(start)
	if err != nil {
		p.metrics.ObserveIngest(0, 0, 0, 0, took, err)
		return nil, fmt.Errorf("ingest %d records: %w", len(records), err)
	}
	result.Took = took
	p.metrics.ObserveIngest(result.Written, 0, result.WordsCreated, result.WordsRemoved, took, nil)
	p.logger.Debug("ingested batch",
		"records", result.Written,
		"words_created", result.WordsCreated,
		"words_updated", result.WordsUpdated,
		"words_removed", result.WordsRemoved,
		"took", took)
	return result, nil
}

// Delete removes records and their postings atomically.
// Missing ids are ignored.
func (p *Pipeline) Delete(ctx context.Context, ids ...core.ID) error {
	_, err := p.DeleteBatch(ctx, ids...)
	return err
}

// DeleteBatch is Delete returning the batch Result.
func (p *Pipeline) DeleteBatch(ctx context.Context, ids ...core.ID) (*Result, error) {
	start := time.Now()
	if len(ids) == 0 {
		return &Result{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var result *Result
	err := p.recordRepository.WithTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		result, txErr = p.applyDeletes(ctx, ids)
		return txErr
	})
	took := time.Since(start)
	if err != nil {
		p.metrics.ObserveIngest(0, 0, 0, 0, took, err)
		return nil, fmt.Errorf("delete %d records: %w", len(ids), err)
	}
	result.Took = took
	p.metrics.ObserveIngest(0, result.Deleted, 0, result.WordsRemoved, took, nil)
	p.logger.Debug("deleted records", "records", result.Deleted, "words_removed", result.WordsRemoved, "took", took)
	return result, nil
}

// Rebuild recomputes the word sets of the stored records with the given ids
// and restores their postings. Each record is read inside the write
// transaction, so a concurrent Ingest of the same id is never overwritten by
// an older copy. Missing ids are ignored. Result.Written counts the records
// rebuilt.
func (p *Pipeline) Rebuild(ctx context.Context, ids ...core.ID) (*Result, error) {
	start := time.Now()
	if len(ids) == 0 {
		return &Result{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var result *Result
	err := p.recordRepository.WithTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		result, txErr = p.applyRebuild(ctx, ids)
		return txErr
	})
	took := time.Since(start)
	if err != nil {
		p.metrics.ObserveIngest(0, 0, 0, 0, took, err)
		return nil, fmt.Errorf("rebuild %d records: %w", len(ids), err)
	}
	result.Took = took
	p.metrics.ObserveIngest(result.Written, 0, result.WordsCreated, result.WordsRemoved, took, nil)
	p.logger.Debug("rebuilt records", "records", result.Written, "words_created", result.WordsCreated, "took", took)
	return result, nil
}

// IngestAsync hands a batch to the pipeline's background writer and returns
// without waiting for the write. If the writer is still busy with a previous
// batch, IngestAsync blocks until it is free. done, if not nil, receives the
// outcome. The batch has the same guarantees as Ingest.
func (p *Pipeline) IngestAsync(records []*core.Record, done func(error)) error {
	if p.writerPool == nil || p.writerPool.IsClosed() {
		return ErrPipelineReleased
	}
	return p.writerPool.Submit(func() {
		err := p.Ingest(context.Background(), records...)
		if err != nil {
			p.logger.Error("error ingesting batch", "err", err)
		}
		if done != nil {
			done(err)
		}
	})
}

// Release waits for a running async batch and releases the worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.writerPool != nil {
		if err := p.writerPool.ReleaseTimeout(time.Minute); err != nil {
			p.logger.Warn("timed out waiting for async ingestion", "err", err)
		}
	}
	if p.extractPool != nil {
		p.extractPool.Release()
	}
}

// applyUpserts runs inside the batch transaction.
func (p *Pipeline) applyUpserts(ctx context.Context, indexed []*core.IndexedRecord) (*Result, error) {
	ids := make([]core.ID, len(indexed))
	for i, r := range indexed {
		ids[i] = r.Id
	}
	prior, err := p.priorWords(ctx, ids)
	if err != nil {
		return nil, err
	}

	delta := newPostingDelta()
	for _, r := range indexed {
		delta.record(r.Id, prior[r.Id], r.Words)
	}

	result, err := p.applyDelta(ctx, delta)
	if err != nil {
		return nil, err
	}
	if err := p.recordRepository.PutRecords(ctx, indexed...); err != nil {
		return nil, err
	}
	result.Written = len(indexed)
	return result, nil
}

// applyDeletes runs inside the batch transaction.
func (p *Pipeline) applyDeletes(ctx context.Context, ids []core.ID) (*Result, error) {
	prior, err := p.priorWords(ctx, ids)
	if err != nil {
		return nil, err
	}

	delta := newPostingDelta()
	existing := make([]core.ID, 0, len(prior))
	for id, words := range prior {
		delta.record(id, words, nil)
		existing = append(existing, id)
	}

	result, err := p.applyDelta(ctx, delta)
	if err != nil {
		return nil, err
	}
	if err := p.recordRepository.DeleteRecords(ctx, existing...); err != nil {
		return nil, err
	}
	result.Deleted = len(existing)
	return result, nil
}

// applyRebuild runs inside the batch transaction. Only records whose word
// set changed are written back.
func (p *Pipeline) applyRebuild(ctx context.Context, ids []core.ID) (*Result, error) {
	stored, err := p.recordRepository.GetRecords(ctx, ids...)
	if err != nil {
		return nil, err
	}
	records := make([]*core.Record, len(stored))
	for i, r := range stored {
		records[i] = &r.Record
	}
	indexed := p.buildIndexedRecords(records)

	delta := newPostingDelta()
	changed := make([]*core.IndexedRecord, 0)
	for i, r := range indexed {
		delta.record(r.Id, stored[i].Words, r.Words)
		if !slices.Equal(stored[i].Words, r.Words) {
			changed = append(changed, r)
		}
	}

	result, err := p.applyDelta(ctx, delta)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		if err := p.recordRepository.PutRecords(ctx, changed...); err != nil {
			return nil, err
		}
	}
	result.Written = len(indexed)
	return result, nil
}

// priorWords loads the stored word sets of the given ids.
func (p *Pipeline) priorWords(ctx context.Context, ids []core.ID) (map[core.ID][]string, error) {
	stored, err := p.recordRepository.GetRecords(ctx, ids...)
	if err != nil {
		return nil, err
	}
	prior := make(map[core.ID][]string, len(stored))
	for _, r := range stored {
		prior[r.Id] = r.Words
	}
	return prior, nil
}

// applyDelta reads the touched word entries, merges and writes them back.
func (p *Pipeline) applyDelta(ctx context.Context, delta *postingDelta) (*Result, error) {
	touched := delta.words()
	entries, err := p.wordRepository.GetWordEntries(ctx, touched...)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*core.WordEntry, len(entries))
	for _, e := range entries {
		existing[e.Word] = e
	}

	plan := planMerge(existing, delta)
	if err := p.wordRepository.PutWordEntries(ctx, plan.upserts...); err != nil {
		return nil, err
	}
	if err := p.wordRepository.DeleteWordEntries(ctx, plan.deletes...); err != nil {
		return nil, err
	}
	return &Result{
		WordsCreated: plan.created,
		WordsUpdated: len(plan.upserts) - plan.created,
		WordsRemoved: len(plan.deletes),
	}, nil
}

// buildIndexedRecords computes word sets, on the worker pool for large batches.
func (p *Pipeline) buildIndexedRecords(records []*core.Record) []*core.IndexedRecord {
	indexed := make([]*core.IndexedRecord, len(records))
	build := func(i int) {
		indexed[i] = &core.IndexedRecord{
			Record: *records[i],
			Words:  text.ExtractWords(records[i]),
		}
	}

	if len(records) < p.parallelThreshold || p.extractPool == nil {
		for i := range records {
			build(i)
		}
		return indexed
	}

	workers := max(p.extractPool.Cap(), 1)
	chunk := (len(records) + workers - 1) / workers
	var wg sync.WaitGroup
	for from := 0; from < len(records); from += chunk {
		start, end := from, min(from+chunk, len(records))
		wg.Add(1)
		task := func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				build(i)
			}
		}
		if err := p.extractPool.Submit(task); err != nil {
			p.logger.Warn("extraction pool unavailable, extracting inline", "err", err)
			task()
		}
	}
	wg.Wait()
	return indexed
}

// collapseDuplicates keeps the last record for every id, preserving the
// position of its first occurrence.
func collapseDuplicates(records []*core.Record) []*core.Record {
	pos := make(map[core.ID]int, len(records))
	out := make([]*core.Record, 0, len(records))
	for _, r := range records {
		if i, ok := pos[r.Id]; ok {
			out[i] = r
			continue
		}
		pos[r.Id] = len(out)
		out = append(out, r)
	}
	return out
}

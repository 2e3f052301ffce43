package reindex

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
	"github.com/poiesic/sift/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyIngester fails the first failures calls with err before delegating.
type flakyIngester struct {
	next     Ingester
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyIngester) Rebuild(ctx context.Context, ids ...core.ID) (*ingestion.Result, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	return f.next.Rebuild(ctx, ids...)
}

// interleavingIngester runs before once ahead of the first rebuild.
type interleavingIngester struct {
	next   Ingester
	before func()
	once   sync.Once
}

func (i *interleavingIngester) Rebuild(ctx context.Context, ids ...core.ID) (*ingestion.Result, error) {
	i.once.Do(i.before)
	return i.next.Rebuild(ctx, ids...)
}

func testConfig() *Config {
	return &Config{
		BatchSize:      3,
		Concurrency:    2,
		ReportInterval: 3,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func (f *fixture) postings(t *testing.T, word string) []core.ID {
	t.Helper()
	entries, err := f.words.GetWordEntries(context.Background(), word)
	require.NoError(t, err)
	if len(entries) == 0 {
		return nil
	}
	return entries[0].Postings
}

func TestNewReindexer_RequiresDependencies(t *testing.T) {
	f := setupTestDB(t)

	_, err := NewReindexer(nil, f.words, f.meta, f.pipeline, nil, nil)
	assert.ErrorIs(t, err, ErrRecordRepositoryRequired)
	_, err = NewReindexer(f.records, nil, f.meta, f.pipeline, nil, nil)
	assert.ErrorIs(t, err, ErrWordRepositoryRequired)
	_, err = NewReindexer(f.records, f.words, nil, f.pipeline, nil, nil)
	assert.ErrorIs(t, err, ErrMetaRepositoryRequired)
	_, err = NewReindexer(f.records, f.words, f.meta, nil, nil, nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)

	r, err := NewReindexer(f.records, f.words, f.meta, f.pipeline, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)
}

func TestReindexer_RebuildsClearedIndex(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	f.seed(t, 10)

	wordsBefore, err := f.words.CountWords(ctx)
	require.NoError(t, err)
	pizzaBefore := f.postings(t, "pizza")
	require.Len(t, pizzaBefore, 10)

	require.NoError(t, f.words.ClearWordIndex(ctx))
	require.Empty(t, f.postings(t, "pizza"))

	var buf bytes.Buffer
	r, err := NewReindexer(f.records, f.words, f.meta, f.pipeline, testConfig(), &buf)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Records)
	assert.Equal(t, wordsBefore, report.Words)
	assert.Equal(t, pizzaBefore, f.postings(t, "pizza"))

	found, err := f.words.FindWordsByFragment(ctx, "izza")
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza"}, found)

	assert.Contains(t, buf.String(), "10/10")
	assert.Contains(t, buf.String(), "Reindex complete")

	meta, err := f.meta.LoadMeta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, core.IndexSchemaVersion, meta.SchemaVersion)
	assert.Equal(t, int64(10), meta.Records)
	assert.Equal(t, wordsBefore, meta.Words)
	assert.False(t, meta.RebuiltAt.IsZero())
}

func TestReindexer_KeepsConcurrentUpserts(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	f.seed(t, 4)

	// The upsert commits after the ids were listed but before u000 is rebuilt.
	updated := core.NewRecord("u000", "name", "Renamed Person", "note", "prefers pasta")
	ingester := &interleavingIngester{
		next: f.pipeline,
		before: func() {
			assert.NoError(t, f.pipeline.Ingest(ctx, updated))
		},
	}

	cfg := testConfig()
	cfg.Concurrency = 1
	r, err := NewReindexer(f.records, f.words, f.meta, ingester, cfg, nil)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	require.NoError(t, err)

	stored, err := f.records.GetRecord(ctx, "u000")
	require.NoError(t, err)
	assert.Equal(t, updated.Fields, stored.Fields)
	assert.Equal(t, []string{"pasta", "person", "prefers", "renamed"}, stored.Words)

	assert.Equal(t, []core.ID{"u000"}, f.postings(t, "pasta"))
	assert.NotContains(t, f.postings(t, "pizza"), core.ID("u000"))
	assert.Equal(t, []core.ID{"u001", "u002", "u003"}, f.postings(t, "pizza"))
}

func TestReindexer_DropsStalePostings(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	f.seed(t, 2)

	// A posting for a record that does not contain the word.
	require.NoError(t, f.words.PutWordEntries(ctx, &core.WordEntry{Word: "ghost", Postings: []core.ID{"u000"}}))

	r, err := NewReindexer(f.records, f.words, f.meta, f.pipeline, testConfig(), nil)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	require.NoError(t, err)

	assert.Empty(t, f.postings(t, "ghost"))
}

func TestReindexer_EmptyDatabase(t *testing.T) {
	f := setupTestDB(t)

	var buf bytes.Buffer
	r, err := NewReindexer(f.records, f.words, f.meta, f.pipeline, DefaultConfig(), &buf)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Records)
	assert.Contains(t, buf.String(), "0 records")

	needs, err := NeedsReindex(context.Background(), f.meta, f.records)
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestReindexer_RetriesConflicts(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t, 4)

	flaky := &flakyIngester{next: f.pipeline, failures: 2, err: storage.ErrConflict}
	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.BatchSize = 10

	r, err := NewReindexer(f.records, f.words, f.meta, flaky, cfg, nil)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Records)
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestReindexer_BatchFailure(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t, 9)

	boom := errors.New("persistent error")
	flaky := &flakyIngester{next: f.pipeline, failures: 1000, err: boom}

	r, err := NewReindexer(f.records, f.words, f.meta, flaky, testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	meta, err := f.meta.LoadMeta(context.Background())
	require.NoError(t, err)
	assert.Nil(t, meta, "metadata is only written by a complete run")
}

func TestReindexer_ContextCancellation(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t, 9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReindexer(f.records, f.words, f.meta, f.pipeline, testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Greater(t, config.BatchSize, 0)
	assert.Greater(t, config.Concurrency, 0)
	assert.Greater(t, config.ReportInterval, 0)
	assert.Greater(t, config.MaxRetries, 0)
	assert.Greater(t, config.RetryDelay, time.Duration(0))
}

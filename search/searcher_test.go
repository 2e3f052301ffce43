package search

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
	"github.com/poiesic/sift/metrics"
	"github.com/poiesic/sift/storage"
	"github.com/poiesic/sift/storage/badger"
	"github.com/poiesic/sift/text"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	records  storage.RecordRepository
	words    storage.WordIndexRepository
	pipeline *ingestion.Pipeline
}

func newFixture(t *testing.T, records ...*core.Record) *fixture {
	t.Helper()
	recordRepo, wordRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	p, err := ingestion.NewPipeline(recordRepo, wordRepo)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	if len(records) > 0 {
		require.NoError(t, p.Ingest(context.Background(), records...))
	}
	return &fixture{records: recordRepo, words: wordRepo, pipeline: p}
}

func (f *fixture) searcher(t *testing.T, opts ...Option) *Searcher {
	t.Helper()
	s, err := NewSearcher(f.records, f.words, opts...)
	require.NoError(t, err)
	return s
}

func ids(records []*core.Record) []core.ID {
	out := make([]core.ID, len(records))
	for i, r := range records {
		out[i] = r.Id
	}
	return out
}

func people() []*core.Record {
	return []*core.Record{
		core.NewRecord("1", "name", "John Smith", "address", "Via Roma 1"),
		core.NewRecord("2", "name", "John Doe", "address", "Corso Italia 22"),
		core.NewRecord("3", "name", "Jane Smith", "address", "Piazza Duomo 3"),
	}
}

func TestNewSearcher(t *testing.T) {
	f := newFixture(t)

	t.Run("valid configuration", func(t *testing.T) {
		s, err := NewSearcher(f.records, f.words)
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		s, err := NewSearcher(f.records, f.words, WithLogger(nil), WithCache(0))
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("nil record repository", func(t *testing.T) {
		_, err := NewSearcher(nil, f.words)
		assert.Equal(t, ErrRecordRepositoryRequired, err)
	})

	t.Run("nil word repository", func(t *testing.T) {
		_, err := NewSearcher(f.records, nil)
		assert.Equal(t, ErrWordRepositoryRequired, err)
	})
}

func TestSearch_MarioRossi(t *testing.T) {
	f := newFixture(t, core.NewRecord("1", "name", "Mario Rossi", "address", "Via Roma 1"))
	s := f.searcher(t)
	ctx := context.Background()

	got, err := s.StartsWith(ctx, "mar")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{"1"}, ids(got))

	got, err = s.Contains(ctx, "rossi")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{"1"}, ids(got))

	got, err = s.Contains(ctx, "zz")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Contains(ctx, "ario ros")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{"1"}, ids(got))

	got, err = s.StartsWith(ctx, "ario")
	require.NoError(t, err)
	assert.Empty(t, got, "startsWith must not match word interiors")
}

func TestSearch_LengthFloor(t *testing.T) {
	f := newFixture(t, core.NewRecord("1", "name", "ab abc"))
	s := f.searcher(t)
	ctx := context.Background()

	for _, mode := range Modes {
		for _, term := range []string{"", "a", "ab", "  ab  ", "\t"} {
			got, err := s.Search(ctx, mode, term)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got, "mode %s term %q", mode, term)
		}
		got, err := s.Search(ctx, mode, " abc ")
		require.NoError(t, err)
		assert.Equal(t, []core.ID{"1"}, ids(got), "mode %s", mode)
	}
}

func TestSearch_MultiWordAND(t *testing.T) {
	f := newFixture(t, people()...)
	s := f.searcher(t)
	ctx := context.Background()

	tests := []struct {
		mode Mode
		term string
		want []core.ID
	}{
		{ModeStartsWith, "john smi", []core.ID{"1"}},
		{ModeStartsWith, "jo do", []core.ID{"2"}},
		{ModeStartsWith, "smith", []core.ID{"1", "3"}},
		{ModeStartsWith, "john", []core.ID{"1", "2"}},
		{ModeStartsWith, "smith jane", []core.ID{"3"}},
		{ModeContains, "john smith", []core.ID{"1"}},
		{ModeContains, "john doe", []core.ID{"2"}},
		{ModeContains, "hn sm", []core.ID{"1"}},
		{ModeContains, "smith via roma", []core.ID{"1"}},
		{ModeContains, "smith jane", nil},
		{ModeContains, "ohn xyzzy smi", nil},
		{ModeContainsBrute, "JOHN SMITH", []core.ID{"1"}},
		{ModeContainsBrute, "mith", []core.ID{"1", "3"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.mode, tt.term), func(t *testing.T) {
			got, err := s.Search(ctx, tt.mode, tt.term)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSearch_UnknownMode(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t)

	_, err := s.Search(context.Background(), Mode("fuzzy"), "anything")
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = s.Search(context.Background(), Mode("fuzzy"), "a")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("CONTAINS")
	require.NoError(t, err)
	assert.Equal(t, ModeContains, m)

	m, err = ParseMode("startswith")
	require.NoError(t, err)
	assert.Equal(t, ModeStartsWith, m)

	_, err = ParseMode("regex")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestSearch_ReflectsReconciledUpserts(t *testing.T) {
	f := newFixture(t, core.NewRecord("1", "name", "Mario Rossi"))
	s := f.searcher(t, WithCache(16))
	ctx := context.Background()

	got, err := s.Contains(ctx, "rossi")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, f.pipeline.Ingest(ctx, core.NewRecord("1", "name", "Mario Bianchi")))

	got, err = s.Contains(ctx, "rossi")
	require.NoError(t, err)
	assert.Empty(t, got, "cached result must not survive a write")

	got, err = s.StartsWith(ctx, "bian")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{"1"}, ids(got))

	require.NoError(t, f.pipeline.Delete(ctx, "1"))
	got, err = s.StartsWith(ctx, "mario")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_CacheHits(t *testing.T) {
	f := newFixture(t, people()...)
	m := metrics.New(prometheus.NewRegistry())
	s := f.searcher(t, WithCache(16), WithMetrics(m))
	ctx := context.Background()

	first, err := s.Contains(ctx, "smith")
	require.NoError(t, err)
	second, err := s.Contains(ctx, "  SMITH ")
	require.NoError(t, err)

	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1, s.cache.len())

	s.PurgeCache()
	assert.Equal(t, 0, s.cache.len())
}

func TestSearch_ConcurrentCachedQueries(t *testing.T) {
	f := newFixture(t, people()...)
	s := f.searcher(t, WithCache(16))
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.StartsWith(ctx, "john")
			assert.NoError(t, err)
			assert.Equal(t, []core.ID{"1", "2"}, ids(got))
		}()
	}
	wg.Wait()
}

type recordingMonitor struct {
	noopMonitor
	steps    []string
	rejected []core.ID
	finished []core.ID
}

func (m *recordingMonitor) AfterCandidates(step string, _ []core.ID) {
	m.steps = append(m.steps, step)
}

func (m *recordingMonitor) Rejected(r *core.Record) {
	m.rejected = append(m.rejected, r.Id)
}

func (m *recordingMonitor) Finish(results []*core.Record) {
	m.finished = ids(results)
}

func TestSearchWithMonitor(t *testing.T) {
	f := newFixture(t, people()...)
	s := f.searcher(t, WithLogger(slog.Default()))
	mon := &recordingMonitor{}

	got, err := s.SearchWithMonitor(context.Background(), ModeContains, "smith via", mon)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{"1"}, ids(got))
	assert.Equal(t, []string{"endsWith:smith", "startsWith:via"}, mon.steps)
	assert.Empty(t, mon.rejected)
	assert.Equal(t, []core.ID{"1"}, mon.finished)

	mon = &recordingMonitor{}
	_, err = s.SearchWithMonitor(context.Background(), ModeContains, "smith piazza", mon)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{"3"}, mon.finished)
}

const corpusAlphabet = "abcde "

func randomText(r *rand.Rand, n int) string {
	var sb strings.Builder
	for range n {
		sb.WriteByte(corpusAlphabet[r.IntN(len(corpusAlphabet))])
	}
	return sb.String()
}

func TestContainsMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	corpus := make([]*core.Record, 150)
	for i := range corpus {
		corpus[i] = core.NewRecord(core.ID(fmt.Sprintf("r%03d", i)),
			"name", strings.ToUpper(randomText(r, 4+r.IntN(10))),
			"note", randomText(r, 4+r.IntN(20)),
		)
	}
	f := newFixture(t, corpus...)
	s := f.searcher(t)
	ctx := context.Background()

	for q := range 300 {
		var term string
		if q%5 == 0 {
			term = randomText(r, 3+r.IntN(4))
		} else {
			raw := corpus[r.IntN(len(corpus))].RawText()
			from := r.IntN(len(raw))
			to := min(len(raw), from+3+r.IntN(6))
			term = raw[from:to]
		}

		var want []core.ID
		needle := text.Normalize(term)
		if text.Length(needle) >= MinTermLength {
			for _, rec := range corpus {
				if strings.Contains(strings.ToLower(rec.RawText()), needle) {
					want = append(want, rec.Id)
				}
			}
		}

		brute, err := s.ContainsBrute(ctx, term)
		require.NoError(t, err)
		indexed, err := s.Contains(ctx, term)
		require.NoError(t, err)

		if len(want) == 0 {
			assert.Empty(t, brute, "brute %q", term)
			assert.Empty(t, indexed, "contains %q", term)
			continue
		}
		assert.Equal(t, want, ids(brute), "brute %q", term)
		assert.Equal(t, want, ids(indexed), "contains %q", term)
	}
}

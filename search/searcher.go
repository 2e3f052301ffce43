package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/metrics"
	"github.com/poiesic/sift/storage"
	"github.com/poiesic/sift/text"
)

// MinTermLength is the minimum number of characters of a trimmed query term.
// Shorter terms match nothing.
const MinTermLength = 3

// Mode selects a search algorithm.
type Mode string

const (
	// ModeStartsWith matches records where every query word prefixes some word of the record.
	ModeStartsWith Mode = "startsWith"
	// ModeContains matches records whose raw text contains the term, using the indices.
	ModeContains Mode = "contains"
	// ModeContainsBrute matches records whose raw text contains the term by scanning every record.
	ModeContainsBrute Mode = "containsBrute"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeStartsWith, ModeContains, ModeContainsBrute}

// ParseMode converts a mode name, case-insensitively, into a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Searcher answers prefix and substring queries over ingested records.
type Searcher struct {
	recordRepository storage.RecordRepository
	wordRepository   storage.WordIndexRepository
	cache            *resultCache
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCache enables the query result cache with room for size results.
// A size of zero or less uses DefaultCacheSize.
func WithCache(size int) Option {
	return func(s *Searcher) error {
		c, err := newResultCache(size)
		if err != nil {
			return err
		}
		s.cache = c
		return nil
	}
}

// WithMetrics records search metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) error {
		s.metrics = m
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	recordRepository storage.RecordRepository,
	wordRepository storage.WordIndexRepository,
	opts ...Option,
) (*Searcher, error) {
	if recordRepository == nil {
		return nil, ErrRecordRepositoryRequired
	}
	if wordRepository == nil {
		return nil, ErrWordRepositoryRequired
	}

	s := &Searcher{
		recordRepository: recordRepository,
		wordRepository:   wordRepository,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// StartsWith returns the records where every whitespace-separated word of
// term is a prefix of some word of the record.
func (s *Searcher) StartsWith(ctx context.Context, term string) ([]*core.Record, error) {
	return s.Search(ctx, ModeStartsWith, term)
}

// Contains returns the records whose raw text contains term, ignoring case.
func (s *Searcher) Contains(ctx context.Context, term string) ([]*core.Record, error) {
	return s.Search(ctx, ModeContains, term)
}

// ContainsBrute is Contains computed by scanning every record. It is the
// reference the indexed search must agree with.
func (s *Searcher) ContainsBrute(ctx context.Context, term string) ([]*core.Record, error) {
	return s.Search(ctx, ModeContainsBrute, term)
}

// Search runs term in the given mode. Results are distinct and sorted by id.
// Terms shorter than MinTermLength after trimming return no results.
// Returned records are shared with the cache and must not be modified.
func (s *Searcher) Search(ctx context.Context, mode Mode, term string) ([]*core.Record, error) {
	return s.SearchWithMonitor(ctx, mode, term, nil)
}

// SearchWithMonitor is Search reporting each narrowing step to monitor.
// Monitored searches bypass the result cache.
func (s *Searcher) SearchWithMonitor(ctx context.Context, mode Mode, term string, monitor SearchMonitor) ([]*core.Record, error) {
	start := time.Now()
	if !mode.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	useCache := s.cache != nil && monitor == nil
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	normalized := text.Normalize(term)
	monitor.Start(mode, normalized)

	if text.Length(normalized) < MinTermLength {
		monitor.Finish(nil)
		s.metrics.ObserveSearch(string(mode), 0, false, true, time.Since(start), nil)
		return []*core.Record{}, nil
	}

	run := func() ([]*core.Record, error) {
		return s.run(ctx, mode, normalized, monitor)
	}

	var (
		results []*core.Record
		cached  bool
		err     error
	)
	if useCache {
		// Read the generation before the snapshot is taken so a result is
		// never filed under a generation newer than the data it saw.
		key := cacheKey(mode, s.recordRepository.Generation(), normalized)
		results, cached, err = s.cache.getOrCompute(key, run)
	} else {
		results, err = run()
	}

	took := time.Since(start)
	s.metrics.ObserveSearch(string(mode), len(results), cached, false, took, err)
	if err != nil {
		s.logger.Error("search failed", "mode", mode, "term", normalized, "err", err)
		return nil, err
	}
	s.logger.Debug("search", "mode", mode, "term", normalized, "results", len(results), "cached", cached, "took", took)
	monitor.Finish(results)
	return results, nil
}

// PurgeCache drops every cached result.
func (s *Searcher) PurgeCache() {
	if s.cache != nil {
		s.cache.purge()
	}
}

func (m Mode) valid() bool {
	switch m {
	case ModeStartsWith, ModeContains, ModeContainsBrute:
		return true
	}
	return false
}

// run executes one query inside a read-only snapshot.
func (s *Searcher) run(ctx context.Context, mode Mode, term string, monitor SearchMonitor) ([]*core.Record, error) {
	var results []*core.Record
	err := s.recordRepository.WithSnapshot(ctx, func(ctx context.Context) error {
		var err error
		switch mode {
		case ModeStartsWith:
			results, err = s.startsWith(ctx, term, monitor)
		case ModeContains:
			results, err = s.contains(ctx, term, monitor)
		case ModeContainsBrute:
			results, err = s.containsBrute(ctx, term, monitor)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*core.Record{}
	}
	return results, nil
}

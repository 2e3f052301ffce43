package search

import (
	"context"
	"strings"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/text"
)

// startsWith narrows candidates word by word: each query word selects the
// postings of every index word it prefixes, and a record must be selected by
// all query words.
func (s *Searcher) startsWith(ctx context.Context, term string, monitor SearchMonitor) ([]*core.Record, error) {
	queryWords := text.Tokenize(term)

	var candidates []core.ID
	for i, qw := range queryWords {
		entries, err := s.wordRepository.FindWordsByPrefix(ctx, qw)
		if err != nil {
			return nil, err
		}
		monitor.AfterWordLookup("prefix:"+qw, entryWords(entries))

		ids := unionPostings(entries)
		if i == 0 {
			candidates = ids
		} else {
			candidates = intersect(candidates, ids)
		}
		monitor.AfterCandidates("prefix:"+qw, candidates)
		if len(candidates) == 0 {
			return nil, nil
		}
	}

	return s.fetchAndVerify(ctx, candidates, monitor, func(raw string) bool {
		for _, qw := range queryWords {
			if !text.HasWordWithPrefix(raw, qw) {
				return false
			}
		}
		return true
	})
}

// contains answers single-word terms from the fragment index and multi-word
// terms by joining an ends-with lookup on the first word with a starts-with
// lookup on the last word.
func (s *Searcher) contains(ctx context.Context, term string, monitor SearchMonitor) ([]*core.Record, error) {
	queryWords := strings.Fields(term)

	var candidates []core.ID
	var err error
	if len(queryWords) == 1 {
		candidates, err = s.containsWordCandidates(ctx, queryWords[0], monitor)
	} else {
		candidates, err = s.containsPhraseCandidates(ctx, queryWords, monitor)
	}
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	return s.fetchAndVerify(ctx, candidates, monitor, func(raw string) bool {
		return text.ContainsFold(raw, term)
	})
}

func (s *Searcher) containsWordCandidates(ctx context.Context, word string, monitor SearchMonitor) ([]core.ID, error) {
	words, err := s.wordRepository.FindWordsByFragmentPrefix(ctx, word)
	if err != nil {
		return nil, err
	}
	monitor.AfterWordLookup("fragment:"+word, words)
	if len(words) == 0 {
		return nil, nil
	}

	entries, err := s.wordRepository.GetWordEntries(ctx, words...)
	if err != nil {
		return nil, err
	}
	candidates := unionPostings(entries)
	monitor.AfterCandidates("fragment:"+word, candidates)
	return candidates, nil
}

func (s *Searcher) containsPhraseCandidates(ctx context.Context, queryWords []string, monitor SearchMonitor) ([]core.ID, error) {
	first, last := queryWords[0], queryWords[len(queryWords)-1]

	// The first query word must be the tail of some record word.
	endWords, err := s.wordRepository.FindWordsByFragment(ctx, first)
	if err != nil {
		return nil, err
	}
	monitor.AfterWordLookup("endsWith:"+first, endWords)
	if len(endWords) == 0 {
		return nil, nil
	}
	endEntries, err := s.wordRepository.GetWordEntries(ctx, endWords...)
	if err != nil {
		return nil, err
	}
	candidates := unionPostings(endEntries)
	monitor.AfterCandidates("endsWith:"+first, candidates)

	// The last query word must be the head of some record word.
	startEntries, err := s.wordRepository.FindWordsByPrefix(ctx, last)
	if err != nil {
		return nil, err
	}
	monitor.AfterWordLookup("startsWith:"+last, entryWords(startEntries))
	candidates = intersect(candidates, unionPostings(startEntries))
	monitor.AfterCandidates("startsWith:"+last, candidates)

	// Interior words must be whole record words.
	for _, w := range queryWords[1 : len(queryWords)-1] {
		if len(candidates) == 0 {
			break
		}
		entries, err := s.wordRepository.GetWordEntries(ctx, w)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			s.logger.Debug("interior word not indexed, skipping", "word", w)
			continue
		}
		candidates = intersect(candidates, entries[0].Postings)
		monitor.AfterCandidates("exact:"+w, candidates)
	}
	return candidates, nil
}

// containsBrute scans every record.
func (s *Searcher) containsBrute(ctx context.Context, term string, monitor SearchMonitor) ([]*core.Record, error) {
	matched, err := s.recordRepository.FilterRecords(ctx, func(r *core.IndexedRecord) bool {
		return text.ContainsFold(r.RawText(), term)
	})
	if err != nil {
		return nil, err
	}
	monitor.AfterRecordRetrieval(matched)
	results := make([]*core.Record, len(matched))
	for i, r := range matched {
		results[i] = &r.Record
	}
	return results, nil
}

// fetchAndVerify loads candidates in id order and keeps those whose raw text
// satisfies match.
func (s *Searcher) fetchAndVerify(ctx context.Context, candidates []core.ID, monitor SearchMonitor, match func(raw string) bool) ([]*core.Record, error) {
	sortIDs(candidates)
	records, err := s.recordRepository.GetRecords(ctx, candidates...)
	if err != nil {
		return nil, err
	}
	monitor.AfterRecordRetrieval(records)

	results := make([]*core.Record, 0, len(records))
	for _, r := range records {
		if !match(r.RawText()) {
			monitor.Rejected(&r.Record)
			continue
		}
		results = append(results, &r.Record)
	}
	return results, nil
}

func entryWords(entries []*core.WordEntry) []string {
	words := make([]string, len(entries))
	for i, e := range entries {
		words[i] = e.Word
	}
	return words
}

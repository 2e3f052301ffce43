package search

import (
	"slices"
	"strings"

	"github.com/poiesic/sift/core"
	"github.com/samber/lo"
)

// unionPostings returns the distinct ids posted under any of entries.
func unionPostings(entries []*core.WordEntry) []core.ID {
	total := 0
	for _, e := range entries {
		total += len(e.Postings)
	}
	all := make([]core.ID, 0, total)
	for _, e := range entries {
		all = append(all, e.Postings...)
	}
	return lo.Uniq(all)
}

// intersect returns the ids present in both a and b.
func intersect(a, b []core.ID) []core.ID {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	return lo.Intersect(a, b)
}

func sortIDs(ids []core.ID) {
	slices.SortFunc(ids, func(a, b core.ID) int {
		return strings.Compare(string(a), string(b))
	})
}

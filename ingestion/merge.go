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


package ingestion

import (
	"slices"
	"strings"

	"github.com/poiesic/sift/core"
	"github.com/samber/lo"
)

// postingDelta collects, per word, the ids gained and lost by one batch.
type postingDelta struct {
	adds     map[string][]core.ID
	removals map[string][]core.ID
}

func newPostingDelta() *postingDelta {
	return &postingDelta{
		adds:     make(map[string][]core.ID),
		removals: make(map[string][]core.ID),
	}
}

// record accounts for id moving from the prior word set to the next one.
// Every word of next is added, so entries lost by a cleared index are rebuilt.
func (d *postingDelta) record(id core.ID, prior, next []string) {
	for _, w := range next {
		d.adds[w] = append(d.adds[w], id)
	}
	for _, w := range prior {
		if _, kept := slices.BinarySearch(next, w); !kept {
			d.removals[w] = append(d.removals[w], id)
		}
	}
}

// words returns every word touched by the delta, sorted.
func (d *postingDelta) words() []string {
	words := lo.Union(lo.Keys(d.adds), lo.Keys(d.removals))
	slices.Sort(words)
	return words
}

// mergePlan is the set of word index writes that applies a delta.
type mergePlan struct {
	upserts []*core.WordEntry
	deletes []string
	created int
}

// planMerge computes postings = existing ∪ adds ∖ removals for every touched
// word. Words whose postings become empty are deleted if they existed.
func planMerge(existing map[string]*core.WordEntry, delta *postingDelta) mergePlan {
	var plan mergePlan
	for _, word := range delta.words() {
		current := existing[word]
		var postings []core.ID
		if current != nil {
			postings = current.Postings
		}
		postings = mergePostings(postings, delta.adds[word], delta.removals[word])

		if len(postings) == 0 {
			if current != nil {
				plan.deletes = append(plan.deletes, word)
			}
			continue
		}

		entry := &core.WordEntry{Word: word, Postings: postings}
		if current != nil {
			entry.Fragments = current.Fragments
		} else {
			plan.created++
		}
		plan.upserts = append(plan.upserts, entry)
	}
	return plan
}

// mergePostings returns the sorted, distinct set (base ∪ add) ∖ remove.
func mergePostings(base, add, remove []core.ID) []core.ID {
	merged := make([]core.ID, 0, len(base)+len(add))
	merged = append(merged, base...)
	merged = append(merged, add...)
	merged = lo.Uniq(merged)
	if len(remove) > 0 {
		merged = lo.Without(merged, remove...)
	}
	slices.SortFunc(merged, func(a, b core.ID) int {
		return strings.Compare(string(a), string(b))
	})
	return merged
}

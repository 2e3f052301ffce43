package search

import (
	"github.com/poiesic/sift/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track how a query narrows its candidates.
type SearchMonitor interface {
	Start(mode Mode, term string)
	// AfterWordLookup reports the index words matched by one lookup step.
	AfterWordLookup(step string, words []string)
	// AfterCandidates reports the candidate ids left after one step.
	AfterCandidates(step string, ids []core.ID)
	AfterRecordRetrieval(records []*core.IndexedRecord)
	// Rejected reports a candidate that failed verification against its raw text.
	Rejected(record *core.Record)
	Finish(results []*core.Record)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Mode, _ string)                       {}
func (n *noopMonitor) AfterWordLookup(_ string, _ []string)         {}
func (n *noopMonitor) AfterCandidates(_ string, _ []core.ID)        {}
func (n *noopMonitor) AfterRecordRetrieval(_ []*core.IndexedRecord) {}
func (n *noopMonitor) Rejected(_ *core.Record)                      {}
func (n *noopMonitor) Finish(_ []*core.Record)                      {}

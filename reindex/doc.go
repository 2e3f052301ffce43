// Package reindex rebuilds the word and fragment indices of a sift store from
// its stored records.
//
// A rebuild clears both indices, feeds every stored record back through the
// ingestion pipeline in batches, and records the new index metadata. Batches
// are fanned out over a bounded errgroup so word extraction runs in parallel
// while the pipeline keeps writes serialized. Transient write failures are
// retried with exponential backoff.
//
// Rebuilding is needed when NeedsReindex reports a store written under a
// different index schema version, or after the indices were damaged.
// Writers other than the reindexer should be stopped while it runs.
package reindex

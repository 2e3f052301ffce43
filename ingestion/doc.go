// Package ingestion provides the write path of the search engine.
//
// The Pipeline type owns every mutation of the store. For each batch it:
//   - Validates records and collapses duplicate ids (last wins)
//   - Extracts word sets, on a worker pool for large batches
//   - Reads the prior versions of the records and the touched word entries
//   - Merges postings (existing ∪ added ∖ removed) and writes records, word
//     entries and fragment keys in one transaction
//
// Words left without postings are deleted together with their fragment keys,
// so the word index always reflects exactly the stored records.
package ingestion

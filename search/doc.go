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


// Package search provides prefix and substring search over ingested records.
//
// The Searcher type implements three modes:
//   - StartsWith: every query word must prefix some word of the record
//   - Contains: the record's raw text must contain the term, answered from
//     the word and fragment indices
//   - ContainsBrute: the same predicate checked by scanning every record
//
// Index lookups only produce candidates. Every candidate is verified against
// its raw text before it is returned, and all lookups of one query read the
// same storage snapshot. Results are unranked and sorted by record id.
package search

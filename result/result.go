// Copyright (c) 2020 The Bluge Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package result defines SearchResult, the unit flowing between pipeline
// stages, and its lifecycle helpers.
package result

import (
	"math"

	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/rlookup"
)

// FilterOut is the score sentinel meaning "discard this result, and do
// not count it toward totalResults".
const FilterOut = math.Inf(-1)

// Explain is a node in a scoring explanation tree; leaves have no
// Children.
type Explain struct {
	Value    float64
	Message  string
	Children []*Explain
}

// SearchResult is the per-document record carried between stages.
type SearchResult struct {
	DocID uint64
	Score float64

	// IndexResult is borrowed from the posting iterator that is
	// currently positioned at DocID. A stage that copies a
	// SearchResult into long-lived storage (the sorter's heap) must
	// nil this field on the original first (Detach) to avoid a double
	// free on the iterator's transient memory.
	IndexResult *index.Result

	// Explain is owned by the result once a ScoreFunction plugin
	// produces it.
	Explain *Explain

	// Dmd is a borrowed, reference-counted handle; released exactly
	// once on every disposal path.
	Dmd *index.DocMetadata

	Row rlookup.Row
}

// New allocates a zeroed SearchResult. Every allocation site must pair
// with exactly one Destroy call (or a move into a buffer that assumes the
// destroy duty, e.g. the buffer-and-lock stage).
func New() *SearchResult {
	return &SearchResult{Row: rlookup.NewRow()}
}

// Detach nils out IndexResult, preventing a stage that retains this
// SearchResult (the sorter's heap) from holding a handle into the
// posting iterator's transient memory past the current pull.
func (r *SearchResult) Detach() {
	r.IndexResult = nil
}

// Clear resets r for reuse: score, explanation, index-result reference,
// and the row are wiped, and dmd is released. r itself is not freed.
func Clear(r *SearchResult, dt index.DocTable) {
	if r == nil {
		return
	}
	r.Score = 0
	r.Explain = nil
	r.IndexResult = nil
	r.Row.Wipe()
	if r.Dmd != nil {
		dt.Release(r.Dmd)
		r.Dmd = nil
	}
}

// Destroy is Clear plus teardown of the row's backing storage. Call this
// (never Clear alone) at the final disposal point of a SearchResult that
// will not be reused.
func Destroy(r *SearchResult, dt index.DocTable) {
	Clear(r, dt)
	r.Row.Cleanup()
}

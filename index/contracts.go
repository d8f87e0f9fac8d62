// Copyright (c) 2020 Bluge Labs, LLC.
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

// Package index holds the contracts the pipeline borrows from the index
// and document-table storage layer. The storage layer itself (postings,
// segments, doc-table persistence) is out of scope for this module; only
// the read-side surface the pipeline pulls from lives here.
package index

import "context"

// ReadStatus is returned by PostingIterator.Read.
type ReadStatus int

const (
	ReadOK ReadStatus = iota
	ReadEOF
	ReadTimedOut
	ReadNotFound
)

// Metric is one named scoring input copied verbatim into a result row by
// the metrics loader stage.
type Metric struct {
	Key   string
	Value interface{}
}

// Result is the opaque per-posting payload: term frequencies, offsets,
// child matches, and the metrics the metrics-loader stage copies out.
// It is borrowed from the PostingIterator and must not be retained past
// the next Read call unless explicitly detached (the sorter does this).
type Result struct {
	DocID   uint64
	Metrics []Metric

	// ScoringInput is opaque to the pipeline; a ScoreFunction plugin
	// knows how to interpret it for a given field/term combination.
	ScoringInput interface{}
}

// PostingIterator is the §6 item 1 contract: the pipeline's only way to
// pull raw index postings. Implementations own the Result they hand back
// across calls — the pipeline must not retain a Result past the next Read.
type PostingIterator interface {
	Read(ctx context.Context) (ReadStatus, *Result)
}

// DocFlags is a bitset of document metadata flags.
type DocFlags uint32

const (
	// DocDeleted marks a document metadata entry as tombstoned; every
	// stage that encounters it must treat it as absent.
	DocDeleted DocFlags = 1 << iota
)

// SortVector is the precomputed, dense array of sortable field values
// stored with a document's metadata, enabling zero-cost sort-by-field.
type SortVector struct {
	Values map[string]interface{}
}

// Get returns the value for key and whether it was present.
func (sv *SortVector) Get(key string) (interface{}, bool) {
	if sv == nil || sv.Values == nil {
		return nil, false
	}
	v, ok := sv.Values[key]
	return v, ok
}

// DocMetadata (dmd) is the reference-counted per-document record: key
// bytes, flags, and the precomputed sort vector.
type DocMetadata struct {
	KeyPtr     []byte
	Flags      DocFlags
	SortVector *SortVector

	refs int32
}

// Deleted reports whether the Document_Deleted-equivalent flag is set.
func (d *DocMetadata) Deleted() bool {
	return d != nil && d.Flags&DocDeleted != 0
}

// DocTable is the §6 item 2 contract: Borrow increments the refcount on
// the returned metadata (or returns nil if the document is unknown);
// Release decrements it. Every Borrow must be paired with exactly one
// Release.
type DocTable interface {
	Borrow(docID uint64) *DocMetadata
	Release(dmd *DocMetadata)
}

// ShardingOracle is the §6 item 8 contract, consulted only in cluster
// mode. KeyToSlot maps a document key to its hash slot; LocalSlotRange
// reports the contiguous [first, last] range of slots owned locally.
type ShardingOracle interface {
	KeyToSlot(key []byte) int
	LocalSlotRange() (first, last int)
}

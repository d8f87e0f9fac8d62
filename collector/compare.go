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

package collector

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/rlookup"
)

// ascendingDocID is the natural ascending compare on DocID: negative
// when a's id is smaller, mirroring compareValues's sign convention for
// an ordinary ascending field. Both comparators below use it as their
// docId tie-break, each applying their own documented inversion on top.
func ascendingDocID(a, b *result.SearchResult) int {
	switch {
	case a.DocID < b.DocID:
		return -1
	case a.DocID > b.DocID:
		return 1
	default:
		return 0
	}
}

// ByScore ranks results by Score, highest first. Tied scores break by
// descending docId: the smaller id wins (spec.md §4.5: "tie-break by
// descending docId (smaller ids win after ties — the heap is
// max-oriented on score)").
func ByScore() Compare[*result.SearchResult] {
	return func(a, b *result.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return 1
		case a.Score < b.Score:
			return -1
		default:
			return -ascendingDocID(a, b)
		}
	}
}

// SortKey names one field of a multi-key ByFields comparator.
type SortKey struct {
	Key *rlookup.Key
}

// ByFields ranks results by a sequence of row fields, each independently
// ascending or descending per the corresponding bit of ascending (bit i
// set means keys[i] sorts ascending; clear means descending). The flags
// are bit-packed rather than carried as a []bool because the sorter
// keeps one comparator alive for the whole query and the field count is
// typically small and fixed at plan time — a packed bitset avoids a
// second small-slice allocation alongside keys.
//
// Per spec.md §4.5: a missing value always sorts after a present one
// regardless of that key's ascend bit; if both sides are missing the
// key, the key resolves by ascending docId and iteration continues (in
// practice this only fires comparing a result against itself). Once
// every key ties, the final tie-break is ascending docId, inverted by
// the last key's ascend bit.
func ByFields(keys []SortKey, ascending *bitset.BitSet) Compare[*result.SearchResult] {
	return func(a, b *result.SearchResult) int {
		for i, k := range keys {
			va, okA := a.Row.Get(k.Key)
			vb, okB := b.Row.Get(k.Key)
			switch {
			case !okA && !okB:
				if c := ascendingDocID(a, b); c != 0 {
					return c
				}
				continue
			case okA && !okB:
				return 1
			case !okA && okB:
				return -1
			}
			c := compareValues(va, vb)
			if c == 0 {
				continue
			}
			if ascending.Test(uint(i)) {
				c = -c
			}
			return c
		}
		c := ascendingDocID(a, b)
		if len(keys) > 0 && ascending.Test(uint(len(keys)-1)) {
			c = -c
		}
		return c
	}
}

// compareValues orders two present row values of the same expected
// dynamic type; ascending natural order (negative when a < b).
func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

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

package stage

import (
	"context"
	"testing"
	"time"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/result"
)

// litIterator replays a fixed sequence of docIDs as a PostingIterator,
// standing in for whatever real posting cursor normally backs a source
// stage in these unit tests.
type litIterator struct {
	docs []uint64
	i    int
}

func (it *litIterator) Read(context.Context) (index.ReadStatus, *index.Result) {
	if it.i >= len(it.docs) {
		return index.ReadEOF, nil
	}
	id := it.docs[it.i]
	it.i++
	return index.ReadOK, &index.Result{DocID: id}
}

// fixedSlotOracle pins each document's slot directly by key rather than
// by crc32, so a test can exercise an exact, chosen slot layout; Contains
// and LocalSlotRange still come from the embedded RoaringSlotOracle.
type fixedSlotOracle struct {
	*index.RoaringSlotOracle
	slots map[string]int
}

func (o *fixedSlotOracle) KeyToSlot(key []byte) int {
	return o.slots[string(key)]
}

// TestIndexTrimsByNonContiguousSlotSet exercises a RoaringSlotOracle whose
// locally-owned slots are not contiguous ({0, 3}): the coarse [first,last]
// range every ShardingOracle exposes would wrongly admit the gap slots 1
// and 2, but the Index source prefers the oracle's precise Contains when
// available.
func TestIndexTrimsByNonContiguousSlotSet(t *testing.T) {
	keyFor := func(id uint64) []byte { return []byte{byte(id)} }

	docs := index.NewMemDocTable()
	for id := uint64(0); id < 4; id++ {
		docs.Put(id, &index.DocMetadata{KeyPtr: keyFor(id)})
	}

	oracle := &fixedSlotOracle{
		RoaringSlotOracle: index.NewRoaringSlotOracle(4, []int{0, 3}),
		slots: map[string]int{
			string(keyFor(0)): 0,
			string(keyFor(1)): 1,
			string(keyFor(2)): 2,
			string(keyFor(3)): 3,
		},
	}

	src := NewIndex(IndexConfig{
		Iter:       &litIterator{docs: []uint64{0, 1, 2, 3}},
		Docs:       docs,
		Sharding:   oracle,
		IsTrimming: true,
	})(nil)
	qctx := qp.NewContext(qp.SearchContext{Docs: docs}, time.Time{}, qp.TimeoutReturn, nil, nil)

	var got []uint64
	for {
		var res result.SearchResult
		st := src.Next(context.Background(), qctx, &res)
		if st != qp.StatusOK {
			break
		}
		got = append(got, res.DocID)
	}

	if len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Fatalf("got %v, want [0 3]", got)
	}
}

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

package main

import (
	"context"
	"math/rand"

	"github.com/bits-and-blooms/bitset"

	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/rlookup"
)

// fixture wires together an in-memory doc table, posting iterator, and
// scoring function standing in for the real keyspace and index storage
// layers, so the debug CLI can exercise the pipeline with no server
// attached.
type fixture struct {
	docs     *index.MemDocTable
	ids      []uint64
	lookup   *rlookup.Lookup
	priceKey *rlookup.Key
	ascend   *bitset.BitSet
	scores   map[uint64]float64
}

func newFixture(n int, seed int64) *fixture {
	rng := rand.New(rand.NewSource(seed))
	lookup := rlookup.New()
	priceKey := lookup.GetKey("price", true)

	docs := index.NewMemDocTable()
	ids := make([]uint64, 0, n)
	scores := make(map[uint64]float64, n)
	for i := 1; i <= n; i++ {
		id := uint64(i)
		price := rng.Float64() * 1000
		docs.Put(id, &index.DocMetadata{
			SortVector: &index.SortVector{Values: map[string]interface{}{"price": price}},
		})
		ids = append(ids, id)
		scores[id] = rng.Float64()
	}

	ascend := bitset.New(1)
	ascend.Set(0)

	return &fixture{docs: docs, ids: ids, lookup: lookup, priceKey: priceKey, ascend: ascend, scores: scores}
}

func (f *fixture) iterator() index.PostingIterator {
	ids := make([]uint64, len(f.ids))
	copy(ids, f.ids)
	return &fakePostingIterator{ids: ids}
}

func (f *fixture) score(_ context.Context, ir *index.Result, _ *index.DocMetadata, _ float64) (float64, *result.Explain) {
	return f.scores[ir.DocID], nil
}

// fakePostingIterator replays a fixed slice of doc IDs as index.Results
// with no scoring input of their own; fixture.score looks the score up
// by ID instead of deriving it from ScoringInput.
type fakePostingIterator struct {
	ids []uint64
	pos int
}

func (it *fakePostingIterator) Read(context.Context) (index.ReadStatus, *index.Result) {
	if it.pos >= len(it.ids) {
		return index.ReadEOF, nil
	}
	id := it.ids[it.pos]
	it.pos++
	return index.ReadOK, &index.Result{DocID: id}
}

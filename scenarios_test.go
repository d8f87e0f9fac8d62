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

package queryproc_test

import (
	"context"
	"testing"
	"time"

	"github.com/bits-and-blooms/bitset"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/collector"
	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/keyspace"
	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/rlookup"
	"github.com/blugelabs/queryproc/stage"
)

func TestScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "pipeline scenarios")
}

// step is one canned (status, docId, score) tuple a litSource replays.
type step struct {
	status qp.Status
	docID  uint64
	score  float64
	dmd    *index.DocMetadata
}

// litSource replays a fixed sequence of steps as a qp.Stage, standing in
// for whatever real source stage normally feeds a scenario under test.
type litSource struct {
	steps []step
	i     int
}

func (s *litSource) Kind() qp.Kind { return qp.KindIndex }

func (s *litSource) Next(_ context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	if s.i >= len(s.steps) {
		return qp.StatusEOF
	}
	st := s.steps[s.i]
	s.i++
	if st.status == qp.StatusOK {
		res.DocID = st.docID
		res.Score = st.score
		res.IndexResult = &index.Result{DocID: st.docID}
		res.Dmd = st.dmd
		qctx.IncrTotalResults()
	}
	return st.status
}

func (s *litSource) Dispose(*qp.Context) {}

func newScenarioContext(policy qp.TimeoutPolicy) *qp.Context {
	return qp.NewContext(qp.SearchContext{Docs: index.NewMemDocTable()}, time.Time{}, policy, nil, nil)
}

func drainIDs(s qp.Stage, qctx *qp.Context) []uint64 {
	var got []uint64
	var res result.SearchResult
	for {
		st := s.Next(context.Background(), qctx, &res)
		if st != qp.StatusOK {
			return got
		}
		got = append(got, res.DocID)
	}
}

var _ = Describe("result-processing pipeline scenarios", func() {
	It("E1: top-2 by score ties break on the smaller docId", func() {
		source := &litSource{steps: []step{
			{status: qp.StatusOK, docID: 1, score: 0.2},
			{status: qp.StatusOK, docID: 2, score: 0.9},
			{status: qp.StatusOK, docID: 3, score: 0.5},
			{status: qp.StatusOK, docID: 4, score: 0.9},
			{status: qp.StatusEOF},
		}}
		sorter := collector.NewSorter(collector.Config{
			Size: 2, Less: collector.ByScore(), Docs: index.NewMemDocTable(),
		})(source)
		qctx := newScenarioContext(qp.TimeoutReturn)

		Expect(drainIDs(sorter, qctx)).To(Equal([]uint64{2, 4}))
		Expect(qctx.TotalResults()).To(Equal(uint64(4)))
	})

	It("E2: a pager windows the sorter's best-first order", func() {
		source := &litSource{steps: []step{
			{status: qp.StatusOK, docID: 1, score: 0.2},
			{status: qp.StatusOK, docID: 2, score: 0.9},
			{status: qp.StatusOK, docID: 3, score: 0.5},
			{status: qp.StatusOK, docID: 4, score: 0.9},
			{status: qp.StatusEOF},
		}}
		docs := index.NewMemDocTable()
		sorter := collector.NewSorter(collector.Config{Size: 4, Less: collector.ByScore(), Docs: docs})(source)
		pager := stage.NewPager(1, 2, docs)(sorter)
		qctx := newScenarioContext(qp.TimeoutReturn)

		Expect(drainIDs(pager, qctx)).To(Equal([]uint64{4, 3}))
	})

	It("E3: filtered-out results are neither counted nor totalled", func() {
		docs := index.NewMemDocTable()
		source := &litSource{steps: []step{
			{status: qp.StatusOK, docID: 1},
			{status: qp.StatusOK, docID: 2},
			{status: qp.StatusOK, docID: 3},
			{status: qp.StatusOK, docID: 4},
			{status: qp.StatusEOF},
		}}
		filterOdd := func(_ context.Context, ir *index.Result, _ *index.DocMetadata, _ float64) (float64, *result.Explain) {
			if ir.DocID%2 != 0 {
				return result.FilterOut, nil
			}
			return 0.1, nil
		}
		scorer := stage.NewScorer(filterOdd, docs)(source)
		counter := stage.NewCounter(docs, false)(scorer).(*stage.Counter)
		qctx := newScenarioContext(qp.TimeoutReturn)

		var res result.SearchResult
		st := counter.Next(context.Background(), qctx, &res)
		Expect(st).To(Equal(qp.StatusEOF))
		Expect(counter.Count()).To(Equal(uint64(2)))
		Expect(qctx.TotalResults()).To(Equal(uint64(2)))
	})

	It("E4: a Return timeout policy yields what was accumulated so far", func() {
		source := &litSource{steps: []step{
			{status: qp.StatusOK, docID: 1, score: 1.0},
			{status: qp.StatusOK, docID: 2, score: 0.8},
			{status: qp.StatusTimedOut},
		}}
		sorter := collector.NewSorter(collector.Config{
			Size: 10, Less: collector.ByScore(), Docs: index.NewMemDocTable(),
		})(source)
		qctx := newScenarioContext(qp.TimeoutReturn)

		Expect(drainIDs(sorter, qctx)).To(Equal([]uint64{1, 2}))
	})

	It("E5: a Fail timeout policy propagates TimedOut and yields nothing", func() {
		source := &litSource{steps: []step{
			{status: qp.StatusOK, docID: 1, score: 1.0},
			{status: qp.StatusOK, docID: 2, score: 0.8},
			{status: qp.StatusTimedOut},
		}}
		sorter := collector.NewSorter(collector.Config{
			Size: 10, Less: collector.ByScore(), Docs: index.NewMemDocTable(),
		})(source)
		qctx := newScenarioContext(qp.TimeoutFail)

		var res result.SearchResult
		st := sorter.Next(context.Background(), qctx, &res)
		Expect(st).To(Equal(qp.StatusTimedOut))
	})

	It("E6: a validating yield drops a doc deleted during GIL handoff", func() {
		docs := index.NewMemDocTable()
		var docA, docB, docC uint64 = 1, 2, 3
		docs.Put(docA, &index.DocMetadata{})
		docs.Put(docB, &index.DocMetadata{})
		docs.Put(docC, &index.DocMetadata{})

		source := &litSource{steps: []step{
			{status: qp.StatusOK, docID: docA, dmd: docs.Borrow(docA)},
			{status: qp.StatusOK, docID: docB, dmd: docs.Borrow(docB)},
			{status: qp.StatusOK, docID: docC, dmd: docs.Borrow(docC)},
			{status: qp.StatusEOF},
		}}

		version := uint64(0)
		gil := &racingGIL{onLock: func() {
			version++
			docs.Delete(docB)
		}}
		indexLock := &fakeIndexLock{}
		handoff := keyspace.NewHandoff(gil)

		buf := stage.NewBufferLock(stage.BufferLockConfig{
			Handoff:        handoff,
			IndexLock:      indexLock,
			CurrentVersion: func() uint64 { return version },
			Docs:           docs,
		})(source)
		unlocker := stage.NewUnlocker(handoff)(buf)
		qctx := newScenarioContext(qp.TimeoutReturn)

		Expect(drainIDs(unlocker, qctx)).To(Equal([]uint64{docA, docC}))
		Expect(indexLock.unlocked).To(BeTrue(), "index read-lock must be dropped before blocking on a busy GIL")
		Expect(gil.unlocked).To(BeTrue(), "the unlocker must release the GIL it handed off")
	})

	It("E7: sorting by a field loads the sortable missing from one doc", func() {
		lookup := rlookup.New()
		priceKey := lookup.GetKey("price", true)

		dmdA := &index.DocMetadata{}
		dmdB := &index.DocMetadata{}
		loader := &litLoader{values: map[*index.DocMetadata]map[string]interface{}{
			dmdA: {"price": 10.0},
			dmdB: {"price": 5.0},
		}}

		// B arrives first so the sorter's load-missing-fields policy,
		// locked in from that first OK result, plans to load price;
		// A arrives already carrying price on its sort vector, and the
		// plan (once frozen) is applied to it too.
		source := &sortVectorSource{docs: []sortVectorDoc{
			{docID: 2, values: nil, dmd: dmdB},
			{docID: 1, values: map[string]interface{}{"price": 10.0}, dmd: dmdA},
		}}
		ascend := bitset.New(1)
		ascend.Set(0)
		sorter := collector.NewSorter(collector.Config{
			Size:   2,
			Less:   collector.ByFields([]collector.SortKey{{Key: priceKey}}, ascend),
			Keys:   []*rlookup.Key{priceKey},
			Lookup: lookup,
			Loader: loader,
			Docs:   index.NewMemDocTable(),
		})(source)
		qctx := newScenarioContext(qp.TimeoutReturn)

		Expect(drainIDs(sorter, qctx)).To(Equal([]uint64{2, 1}))
	})
})

// litLoader implements rlookup.Loader, answering every LoadDocument call
// with each document's own authoritative field values, keyed by the dmd
// identity the sorter passes through LoadOptions.
type litLoader struct {
	values map[*index.DocMetadata]map[string]interface{}
}

func (l *litLoader) LoadDocument(_ context.Context, _ *rlookup.Lookup, row *rlookup.Row, opts rlookup.LoadOptions) error {
	dmd, _ := opts.Dmd.(*index.DocMetadata)
	for _, k := range opts.Keys {
		if v, ok := l.values[dmd][k.Name()]; ok {
			row.WriteKey(k, v)
		}
	}
	return nil
}

// sortVectorDoc is one document's precomputed sort-vector values, or nil
// if the document carries no sort vector at all.
type sortVectorDoc struct {
	docID  uint64
	values map[string]interface{}
	dmd    *index.DocMetadata
}

// fakeSortVector implements rlookup.SortVectorView over a plain map.
type fakeSortVector struct{ values map[string]interface{} }

func (v fakeSortVector) Get(key string) (interface{}, bool) {
	val, ok := v.values[key]
	return val, ok
}

// sortVectorSource replays sortVectorDoc entries as a qp.Stage, aliasing
// each result's row onto the document's precomputed sort vector when one
// is present.
type sortVectorSource struct {
	docs []sortVectorDoc
	i    int
}

func (s *sortVectorSource) Kind() qp.Kind { return qp.KindIndex }

func (s *sortVectorSource) Next(_ context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	if s.i >= len(s.docs) {
		return qp.StatusEOF
	}
	d := s.docs[s.i]
	s.i++
	res.DocID = d.docID
	res.Dmd = d.dmd
	if d.values != nil {
		res.Row.SetSortVector(fakeSortVector{values: d.values})
	}
	qctx.IncrTotalResults()
	return qp.StatusOK
}

func (s *sortVectorSource) Dispose(*qp.Context) {}

// racingGIL simulates a writer holding the keyspace mutex: TryLock always
// reports busy, and Lock's onLock callback stands in for whatever the
// writer does (here, deleting a document and bumping the index version)
// while the caller "blocks" on it.
type racingGIL struct {
	onLock   func()
	unlocked bool
}

func (g *racingGIL) TryLock() keyspace.LockResult { return keyspace.LockBusy }
func (g *racingGIL) Lock() {
	if g.onLock != nil {
		g.onLock()
	}
}
func (g *racingGIL) Unlock() { g.unlocked = true }

type fakeIndexLock struct{ unlocked bool }

func (l *fakeIndexLock) UnlockSpec() { l.unlocked = true }

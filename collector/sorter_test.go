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
	"context"
	"testing"
	"time"

	"github.com/bits-and-blooms/bitset"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/rlookup"
)

// fixtureStage replays a canned sequence of (status, docId, score)
// steps as a qp.Stage, standing in for whatever real stage normally
// sits upstream of the sorter in these unit tests.
type fixtureStage struct {
	steps []fixtureStep
	i     int
}

type fixtureStep struct {
	status qp.Status
	docID  uint64
	score  float64
}

func (f *fixtureStage) Kind() qp.Kind { return qp.KindIndex }

func (f *fixtureStage) Next(_ context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	if f.i >= len(f.steps) {
		return qp.StatusEOF
	}
	s := f.steps[f.i]
	f.i++
	if s.status == qp.StatusOK {
		res.DocID = s.docID
		res.Score = s.score
		qctx.IncrTotalResults()
	}
	return s.status
}

func (f *fixtureStage) Dispose(*qp.Context) {}

type noopDocTable struct{}

func (noopDocTable) Borrow(uint64) *index.DocMetadata { return nil }
func (noopDocTable) Release(*index.DocMetadata)       {}

func newTestContext() *qp.Context {
	return qp.NewContext(qp.SearchContext{Docs: noopDocTable{}}, time.Time{}, qp.TimeoutReturn, nil, nil)
}

func drain(t *testing.T, s qp.Stage, qctx *qp.Context) []uint64 {
	t.Helper()
	var got []uint64
	var res result.SearchResult
	for {
		st := s.Next(context.Background(), qctx, &res)
		if st == qp.StatusEOF {
			return got
		}
		if st != qp.StatusOK {
			t.Fatalf("unexpected status %v", st)
		}
		got = append(got, res.DocID)
	}
}

func wantIDs(t *testing.T, got, want []uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestSorterTopTwoByScore is scenario E1 from spec.md §7: four docs
// through a score comparator with K=2; a tie at the max end resolves to
// the smaller docId.
func TestSorterTopTwoByScore(t *testing.T) {
	upstream := &fixtureStage{steps: []fixtureStep{
		{qp.StatusOK, 1, 0.2},
		{qp.StatusOK, 2, 0.9},
		{qp.StatusOK, 3, 0.5},
		{qp.StatusOK, 4, 0.9},
		{qp.StatusEOF, 0, 0},
	}}
	sorter := NewSorter(Config{Size: 2, Less: ByScore(), Docs: noopDocTable{}})(upstream)
	qctx := newTestContext()

	got := drain(t, sorter, qctx)
	wantIDs(t, got, []uint64{2, 4})
	if qctx.TotalResults() != 4 {
		t.Fatalf("TotalResults() = %d, want 4", qctx.TotalResults())
	}
}

// TestSorterPagerOverSorter is scenario E2: the same four docs with
// K=4 (everything retained) must come out in full best-first order so
// a downstream pager's offset/limit slicing lines up.
func TestSorterPagerOverSorter(t *testing.T) {
	upstream := &fixtureStage{steps: []fixtureStep{
		{qp.StatusOK, 1, 0.2},
		{qp.StatusOK, 2, 0.9},
		{qp.StatusOK, 3, 0.5},
		{qp.StatusOK, 4, 0.9},
		{qp.StatusEOF, 0, 0},
	}}
	sorter := NewSorter(Config{Size: 4, Less: ByScore(), Docs: noopDocTable{}})(upstream)
	qctx := newTestContext()

	got := drain(t, sorter, qctx)
	wantIDs(t, got, []uint64{2, 4, 3, 1})
}

// TestSorterTimeoutReturnPolicy is scenario E4: upstream reports
// TIMEDOUT after two results; the "return partial results" policy
// yields what was accumulated so far.
func TestSorterTimeoutReturnPolicy(t *testing.T) {
	upstream := &fixtureStage{steps: []fixtureStep{
		{qp.StatusOK, 1, 1.0},
		{qp.StatusOK, 2, 0.8},
		{qp.StatusTimedOut, 0, 0},
	}}
	sorter := NewSorter(Config{Size: 10, Less: ByScore(), Docs: noopDocTable{}})(upstream)
	qctx := newTestContext()
	qctx.TimeoutPolicy = qp.TimeoutReturn

	got := drain(t, sorter, qctx)
	wantIDs(t, got, []uint64{1, 2})
}

// TestSorterTimeoutFailPolicy is scenario E5: the same upstream under
// the "fail" policy propagates TIMEDOUT and yields nothing.
func TestSorterTimeoutFailPolicy(t *testing.T) {
	upstream := &fixtureStage{steps: []fixtureStep{
		{qp.StatusOK, 1, 1.0},
		{qp.StatusOK, 2, 0.8},
		{qp.StatusTimedOut, 0, 0},
	}}
	sorter := NewSorter(Config{Size: 10, Less: ByScore(), Docs: noopDocTable{}})(upstream)
	qctx := newTestContext()
	qctx.TimeoutPolicy = qp.TimeoutFail

	var res result.SearchResult
	st := sorter.Next(context.Background(), qctx, &res)
	if st != qp.StatusTimedOut {
		t.Fatalf("status = %v, want TIMEDOUT", st)
	}
}

// fakeLoader implements rlookup.Loader, answering every LoadDocument call
// with each document's own authoritative field values, keyed by the dmd
// identity the sorter passes through LoadOptions — standing in for a real
// loader fetching current keyspace state per document.
type fakeLoader struct {
	values map[*index.DocMetadata]map[string]interface{}
}

func (f *fakeLoader) LoadDocument(_ context.Context, _ *rlookup.Lookup, row *rlookup.Row, opts rlookup.LoadOptions) error {
	dmd, _ := opts.Dmd.(*index.DocMetadata)
	for _, k := range opts.Keys {
		if v, ok := f.values[dmd][k.Name()]; ok {
			row.WriteKey(k, v)
		}
	}
	return nil
}

// TestSorterSortByFieldMissingSortable is scenario E7: doc A carries
// `price` on its precomputed sort vector, doc B does not and must be
// loaded; ascending compare on `price` ranks B(5) above A(10). Doc B
// arrives first so the sorter's load-missing-fields policy, locked in
// from that first OK result, plans to load price — and then applies that
// frozen plan to A too.
func TestSorterSortByFieldMissingSortable(t *testing.T) {
	lookup := rlookup.New()
	priceKey := lookup.GetKey("price", true)

	dmdA := &index.DocMetadata{}
	dmdB := &index.DocMetadata{}
	loader := &fakeLoader{values: map[*index.DocMetadata]map[string]interface{}{
		dmdA: {"price": 10.0},
		dmdB: {"price": 5.0},
	}}

	upstream := &recordingStage{docs: []docFixture{
		{docID: 2, score: 1, sortVector: nil, dmd: dmdB},
		{docID: 1, score: 1, sortVector: map[string]interface{}{"price": 10.0}, dmd: dmdA},
	}}

	ascend := bitset.New(1)
	ascend.Set(0)
	cfg := Config{
		Size:   2,
		Less:   ByFields([]SortKey{{Key: priceKey}}, ascend),
		Keys:   []*rlookup.Key{priceKey},
		Lookup: lookup,
		Loader: loader,
		Docs:   noopDocTable{},
	}
	sorter := NewSorter(cfg)(upstream)
	qctx := newTestContext()

	got := drain(t, sorter, qctx)
	wantIDs(t, got, []uint64{2, 1})
}

type docFixture struct {
	docID      uint64
	score      float64
	sortVector map[string]interface{}
	dmd        *index.DocMetadata
}

type fakeSortVector struct{ values map[string]interface{} }

func (v fakeSortVector) Get(key string) (interface{}, bool) {
	val, ok := v.values[key]
	return val, ok
}

// recordingStage is a fixtureStage variant that also carries a row's
// precomputed sort vector and sets each result's Dmd to the fixture's
// *index.DocMetadata, the handle fakeLoader keys its values by.
type recordingStage struct {
	docs []docFixture
	i    int
}

func (r *recordingStage) Kind() qp.Kind { return qp.KindIndex }

func (r *recordingStage) Next(_ context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	if r.i >= len(r.docs) {
		return qp.StatusEOF
	}
	d := r.docs[r.i]
	r.i++
	res.DocID = d.docID
	res.Score = d.score
	res.Dmd = d.dmd
	if d.sortVector != nil {
		res.Row.SetSortVector(fakeSortVector{values: d.sortVector})
	}
	qctx.IncrTotalResults()
	return qp.StatusOK
}

func (r *recordingStage) Dispose(*qp.Context) {}

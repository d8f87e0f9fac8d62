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

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/rlookup"
)

// timeoutSampleEvery mirrors the source stage's amortized deadline
// check (spec.md §4.2 point 1), applied here to the accumulate phase.
const timeoutSampleEvery = 64

// phase is the sorter's explicit accumulate/yield state (§9 design
// note: model this as an enum, never as a swapped function pointer).
type phase int

const (
	phaseAccumulate phase = iota
	phaseYield
)

// Config configures a Sorter stage.
type Config struct {
	// Size is the number of results to keep (the "K" of top-K); Skip is
	// how many of the best-ranked results to discard before yielding
	// the rest (pagination's offset half, spec.md §4.5).
	Size int
	Skip int

	// Less orders two results; see ByScore and ByFields.
	Less Compare[*result.SearchResult]

	// Keys lists the sort keys the comparator depends on. The sorter
	// derives its load plan from exactly one observation — the first OK
	// result's row — then freezes it for the life of the query; see
	// resolveSortKeys. Loader may be nil if every sort key is always
	// present on the row's precomputed sort vector.
	Keys   []*rlookup.Key
	Lookup *rlookup.Lookup
	Loader rlookup.Loader

	Docs index.DocTable
}

// Sorter is the top-K sorter stage (spec.md §4.5): it accumulates every
// upstream result into a bounded min-max heap, evicting the
// current-worst candidate on overflow, then yields the retained results
// best-first once upstream reports EOF.
type Sorter struct {
	upstream qp.Stage
	cfg      Config

	// unbounded is true when cfg.Size == 0: spec.md §4.5 treats that as
	// "unbounded growing heap" rather than "keep zero results".
	unbounded bool
	capacity  int
	heap      *MinMaxHeap[*result.SearchResult]

	ph      phase
	ordered []*result.SearchResult
	cursor  int

	calls int

	// keysPlanned and loadKeys implement the once-only resolution of
	// spec.md §4.5 step 5: loadKeys is derived from the first OK
	// result's row and then reused, unexamined, for every later one.
	keysPlanned bool
	loadKeys    []*rlookup.Key
}

// NewSorter returns a StageFactory for a Sorter stage.
func NewSorter(cfg Config) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		unbounded := cfg.Size == 0
		capacity := cfg.Size + cfg.Skip
		initial := capacity + 1
		if unbounded {
			initial = 64
		}
		return &Sorter{
			upstream:  upstream,
			cfg:       cfg,
			unbounded: unbounded,
			capacity:  capacity,
			heap:      NewMinMaxHeap(cfg.Less, initial),
		}
	}
}

func (*Sorter) Kind() qp.Kind { return qp.KindSorter }

func (s *Sorter) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	if s.ph == phaseYield {
		return s.yield(res)
	}
	return s.accumulate(ctx, qctx, res)
}

// accumulate runs the sorter's first phase: it pulls every upstream
// result, resolves any sort keys missing from the row, and admits the
// result into the heap. It does not return while upstream still has
// results — the sorter is a full barrier, since the Kth-best result
// cannot be known until every candidate has been seen — but loops
// internally until upstream reaches a terminal status, then transitions
// to yield and returns the first yielded result (or EOF).
func (s *Sorter) accumulate(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	for {
		st := s.upstream.Next(ctx, qctx, res)
		switch st {
		case qp.StatusOK:
			s.calls++
			if s.calls%timeoutSampleEvery == 0 && qctx.Expired() {
				if qctx.TimeoutPolicy == qp.TimeoutFail {
					result.Clear(res, s.cfg.Docs)
					s.discardAll()
					return qp.StatusTimedOut
				}
				result.Clear(res, s.cfg.Docs)
				return s.finalizeAndYield(res)
			}

			if err := s.resolveSortKeys(ctx, res); err != nil {
				qctx.SetErr(err)
				qctx.DecrTotalResults()
				result.Clear(res, s.cfg.Docs)
				continue
			}

			res.Detach()
			owned := &result.SearchResult{
				DocID:   res.DocID,
				Score:   res.Score,
				Explain: res.Explain,
				Dmd:     res.Dmd,
				Row:     res.Row,
			}
			s.admit(owned, qctx)
			*res = result.SearchResult{Row: rlookup.NewRow()}
			continue
		case qp.StatusEOF:
			return s.finalizeAndYield(res)
		case qp.StatusTimedOut:
			if qctx.TimeoutPolicy == qp.TimeoutReturn {
				return s.finalizeAndYield(res)
			}
			s.discardAll()
			return qp.StatusTimedOut
		default:
			s.discardAll()
			return st
		}
	}
}

// resolveSortKeys implements spec.md §4.5 steps 5-6. Step 5 runs once,
// against the first OK result's row, and freezes the sorter's loadKeys
// plan; every later result reuses that frozen plan without re-examining
// its own row for what's missing. Step 6 then fetches the whole frozen
// set via the loader rather than one key at a time, since most Loader
// implementations batch a document fetch regardless of key count.
func (s *Sorter) resolveSortKeys(ctx context.Context, res *result.SearchResult) error {
	if !s.keysPlanned {
		s.planLoadKeys(res)
		s.keysPlanned = true
	}
	if s.cfg.Loader == nil || len(s.loadKeys) == 0 {
		return nil
	}
	return s.cfg.Loader.LoadDocument(ctx, s.cfg.Lookup, &res.Row, rlookup.LoadOptions{
		Dmd:  res.Dmd,
		Keys: s.loadKeys,
		Mode: rlookup.KeyList,
	})
}

// planLoadKeys builds the sorter's one-time load plan from res's row: a
// key not already resolvable from the row (its dynamic overlay or its
// precomputed sort vector) is added to loadKeys. A row with no sort
// vector at all gets every requested key loaded, whatever its overlay
// holds.
func (s *Sorter) planLoadKeys(res *result.SearchResult) {
	if len(s.cfg.Keys) == 0 {
		return
	}
	if !res.Row.HasSortVector() {
		s.loadKeys = append([]*rlookup.Key(nil), s.cfg.Keys...)
		return
	}
	for _, k := range s.cfg.Keys {
		if _, ok := res.Row.Get(k); !ok {
			s.loadKeys = append(s.loadKeys, k)
		}
	}
}

// admit inserts owned into the heap, or rejects it outright, per
// spec.md §4.5 step 7: once the heap is at capacity, its current
// minimum is used both to bump PipelineContext's minScore lower bound
// and to decide admission — a candidate that does not outrank the
// current minimum is dropped without ever entering the heap. Eviction
// here is not a filter on the result count: a rejected or evicted
// candidate already counted toward totalResults and stays counted;
// only the scorer's FilterOut path and a failed sort-key load in
// accumulate decrement it.
func (s *Sorter) admit(owned *result.SearchResult, qctx *qp.Context) {
	if s.unbounded || s.heap.Len() < s.capacity {
		s.heap.Push(owned)
		return
	}
	min := s.heap.PeekMin()
	qctx.BumpMinScore(min.Score)
	if s.cfg.Less(owned, min) <= 0 {
		result.Destroy(owned, s.cfg.Docs)
		return
	}
	result.Destroy(s.heap.PopMin(), s.cfg.Docs)
	s.heap.Push(owned)
}

// finalizeAndYield drains the heap into ordered (best-first), drops the
// first Skip entries, switches to the yield phase, and returns this
// call's first yielded result (or EOF if nothing survives skip).
func (s *Sorter) finalizeAndYield(res *result.SearchResult) qp.Status {
	n := s.heap.Len()
	s.ordered = make([]*result.SearchResult, n)
	for i := 0; i < n; i++ {
		s.ordered[i] = s.heap.PopMax()
	}
	skip := s.cfg.Skip
	if skip > len(s.ordered) {
		skip = len(s.ordered)
	}
	for i := 0; i < skip; i++ {
		result.Destroy(s.ordered[i], s.cfg.Docs)
	}
	s.ordered = s.ordered[skip:]
	s.cursor = 0
	s.ph = phaseYield
	return s.yield(res)
}

// yield runs the sorter's second phase: one retained result per call,
// best-first.
func (s *Sorter) yield(res *result.SearchResult) qp.Status {
	if s.cursor >= len(s.ordered) {
		return qp.StatusEOF
	}
	item := s.ordered[s.cursor]
	s.ordered[s.cursor] = nil
	s.cursor++
	*res = *item
	return qp.StatusOK
}

// discardAll releases every result still resident in the heap, used
// when the accumulate phase aborts via StatusError or a TimeoutFail
// policy before ever reaching finalizeAndYield.
func (s *Sorter) discardAll() {
	for s.heap.Len() > 0 {
		result.Destroy(s.heap.PopMin(), s.cfg.Docs)
	}
}

// Dispose releases every result the sorter still owns: whatever is left
// in the heap (aborted before finalize) and whatever is left in ordered
// (finalized but not fully yielded, e.g. the caller stopped pulling
// early).
func (s *Sorter) Dispose(*qp.Context) {
	s.discardAll()
	for _, item := range s.ordered {
		if item != nil {
			result.Destroy(item, s.cfg.Docs)
		}
	}
	s.ordered = nil
}

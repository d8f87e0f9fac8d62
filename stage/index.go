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

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/result"
)

// timeoutSampleEvery bounds the overhead of deadline checking: the
// source stage samples the clock only once per this many Next calls
// (spec.md §4.2 point 1: "bounded overhead").
const timeoutSampleEvery = 64

// slotSetOracle is an optional refinement of index.ShardingOracle: an
// oracle whose locally-owned slots are not contiguous (e.g. after a
// rebalance) can answer membership precisely instead of forcing callers
// down to the coarse [first,last] range every ShardingOracle must supply.
type slotSetOracle interface {
	Contains(slot int) bool
}

// Index is the source stage: it wraps the posting iterator, applying
// shard-trimming, deleted-doc skipping, and deadline sampling (spec.md
// §4.2). It has no upstream — it is always the head of the chain.
type Index struct {
	iter       index.PostingIterator // nil means "0 results", per point 2
	docs       index.DocTable
	sharding   index.ShardingOracle
	isTrimming bool

	calls int
}

// IndexConfig configures a source stage. Sharding and IsTrimming are
// only consulted in cluster mode (spec.md §6 item 8).
type IndexConfig struct {
	Iter       index.PostingIterator
	Docs       index.DocTable
	Sharding   index.ShardingOracle
	IsTrimming bool
}

// NewIndex returns a StageFactory for an Index source. It ignores the
// supplied upstream: a source stage is always the pipeline head.
func NewIndex(cfg IndexConfig) qp.StageFactory {
	return func(qp.Stage) qp.Stage {
		return &Index{
			iter:       cfg.Iter,
			docs:       cfg.Docs,
			sharding:   cfg.Sharding,
			isTrimming: cfg.IsTrimming,
		}
	}
}

func (s *Index) Kind() qp.Kind { return qp.KindIndex }

func (s *Index) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	s.calls++
	if s.calls%timeoutSampleEvery == 0 && qctx.Expired() {
		return qp.StatusTimedOut
	}

	if s.iter == nil {
		return qp.StatusEOF
	}

	for {
		rc, ir := s.iter.Read(ctx)
		switch rc {
		case index.ReadEOF:
			return qp.StatusEOF
		case index.ReadTimedOut:
			return qp.StatusTimedOut
		case index.ReadNotFound:
			continue
		}
		// ReadOK with a nil result is treated as NOT_FOUND (spec.md
		// §4.2 edge case).
		if ir == nil {
			continue
		}

		dmd := s.docs.Borrow(ir.DocID)
		if dmd == nil || dmd.Deleted() {
			s.docs.Release(dmd)
			continue
		}

		if s.isTrimming && s.sharding != nil {
			slot := s.sharding.KeyToSlot(dmd.KeyPtr)
			owned := false
			if sc, ok := s.sharding.(slotSetOracle); ok {
				owned = sc.Contains(slot)
			} else {
				first, last := s.sharding.LocalSlotRange()
				owned = slot >= first && slot <= last
			}
			if !owned {
				s.docs.Release(dmd)
				continue
			}
		}

		qctx.IncrTotalResults()
		res.DocID = ir.DocID
		res.IndexResult = ir
		res.Dmd = dmd
		if dmd.SortVector != nil {
			res.Row.SetSortVector(dmd.SortVector)
		}
		return qp.StatusOK
	}
}

func (s *Index) Dispose(*qp.Context) {}

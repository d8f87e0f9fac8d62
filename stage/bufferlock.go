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
	"github.com/blugelabs/queryproc/keyspace"
	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/rlookup"
)

// blockSize is the chunk size of the buffer-and-lock stage's
// block-chained buffer; each block is allocated as a single slice so the
// buffer grows without repeatedly reslicing the whole thing.
const blockSize = 256

type block struct {
	items [blockSize]*result.SearchResult
	n     int
}

// phase is the buffer-and-lock stage's explicit state (§9 design note:
// model the accumulate/yield transition as an enum, not a swapped
// function pointer).
type phase int

const (
	phaseDrain phase = iota
	phaseHandoff
	phaseYield
)

// BufferLockConfig configures a BufferLock stage.
type BufferLockConfig struct {
	Handoff        *keyspace.Handoff
	IndexLock      keyspace.IndexLock
	CurrentVersion func() uint64
	Docs           index.DocTable

	// SpillThreshold is the number of results the buffer keeps fully
	// resident (as *result.SearchResult, in blocks) before spilling
	// the remainder to an mmap-backed scratch file (see spill.go). 0
	// disables spilling.
	SpillThreshold int
}

// WithSpillThreshold returns a copy of cfg with SpillThreshold set to n,
// following the teacher's value-receiver functional-options idiom
// (index.Config's WithXxx methods).
func (cfg BufferLockConfig) WithSpillThreshold(n int) BufferLockConfig {
	cfg.SpillThreshold = n
	return cfg
}

// BufferLock drains its upstream into a contiguous buffer, then
// acquires the keyspace mutex (GIL) before any downstream stage is
// allowed to touch keys, breaking the lock-ordering hazard described in
// spec.md §4.10: acquiring the GIL while holding the index read-lock
// risks deadlock against a writer that holds the GIL and waits on the
// index lock.
type BufferLock struct {
	upstream qp.Stage
	cfg      BufferLockConfig

	phase      phase
	blocks     []*block
	spill      *spillFile
	total      int
	version    uint64
	validating bool

	// yield cursor
	blockIdx, itemIdx int
	spillIdx          int
}

// NewBufferLock returns a StageFactory for a BufferLock stage.
func NewBufferLock(cfg BufferLockConfig) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		return &BufferLock{upstream: upstream, cfg: cfg}
	}
}

func (*BufferLock) Kind() qp.Kind { return qp.KindBufferLock }

func (b *BufferLock) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	switch b.phase {
	case phaseDrain:
		st := b.drain(ctx, qctx, res)
		if b.phase != phaseDrain {
			// drain transitioned to handoff (EOF, or TIMEDOUT under the
			// Return policy); that transition is an implementation
			// detail of this stage, not a status the caller should see.
			return b.Next(ctx, qctx, res)
		}
		return st
	case phaseHandoff:
		b.handoff(qctx)
		return b.Next(ctx, qctx, res)
	default:
		return b.yield(res)
	}
}

// drain runs Phase A: pull every upstream result into the buffer until
// EOF, or until a TIMEDOUT under the "return" policy. On either
// terminal condition, it sets the phase to handoff and returns; Next
// then continues into the handoff. Any other non-OK status propagates
// immediately.
func (b *BufferLock) drain(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	for {
		st := b.upstream.Next(ctx, qctx, res)
		switch st {
		case qp.StatusOK:
			b.admit(res, qctx)
			// The buffer now owns res's Row (including its dynamic
			// overlay map); res must not keep aliasing it.
			*res = result.SearchResult{Row: rlookup.NewRow()}
			continue
		case qp.StatusEOF:
			b.phase = phaseHandoff
			return qp.StatusEOF
		case qp.StatusTimedOut:
			if qctx.TimeoutPolicy == qp.TimeoutReturn {
				b.phase = phaseHandoff
				return qp.StatusEOF
			}
			return qp.StatusTimedOut
		default:
			return st
		}
	}
}

// admit moves res (by value copy of its pointer-bearing fields) into
// the buffer: a fresh SearchResult is allocated so the caller's pooled
// slot can be wiped for the next pull; ownership of Dmd/Row passes
// entirely to the buffer (spec.md §4.10 invariant: "total" ownership,
// downstream receives a moved copy with the buffer's slot nulled out).
// IndexResult is not kept: the posting iterator owns it only until its
// next Read, and the buffer outlives that.
func (b *BufferLock) admit(res *result.SearchResult, qctx *qp.Context) {
	if b.cfg.SpillThreshold > 0 && b.total >= b.cfg.SpillThreshold {
		b.admitSpill(res, qctx)
		return
	}
	moved := &result.SearchResult{
		DocID:   res.DocID,
		Score:   res.Score,
		Explain: res.Explain,
		Dmd:     res.Dmd,
		Row:     res.Row,
	}
	if len(b.blocks) == 0 || b.blocks[len(b.blocks)-1].n == blockSize {
		b.blocks = append(b.blocks, &block{})
	}
	cur := b.blocks[len(b.blocks)-1]
	cur.items[cur.n] = moved
	cur.n++
	b.total++
}

func (b *BufferLock) handoff(qctx *qp.Context) {
	b.version = b.cfg.CurrentVersion()

	if b.cfg.Handoff.TryAcquire() == keyspace.LockAcquired {
		// No writer held the GIL, so the index read-lock is still
		// safe to hold.
		b.phase = phaseYield
		return
	}

	// A writer held the GIL. Release the index read-lock first so it
	// cannot deadlock against that writer waiting on it, then block
	// for the GIL.
	b.cfg.IndexLock.UnlockSpec()
	b.cfg.Handoff.BlockingAcquire()

	if b.cfg.CurrentVersion() != b.version {
		b.validating = true
	}
	b.phase = phaseYield
}

// yield runs Phase C: iterate the buffer, one result per call. The
// validating variant additionally skips results whose Dmd is now
// deleted.
func (b *BufferLock) yield(res *result.SearchResult) qp.Status {
	for {
		item, ok := b.next()
		if !ok {
			return qp.StatusEOF
		}
		if b.validating && item.Dmd != nil && item.Dmd.Deleted() {
			// This buffered result is stale; it is not returned, and
			// its ownership (dmd reference) is dropped here since
			// nothing downstream will see it.
			if b.cfg.Docs != nil {
				b.cfg.Docs.Release(item.Dmd)
			}
			continue
		}
		*res = *item
		return qp.StatusOK
	}
}

// next pulls the next buffered or spilled item in admission order.
func (b *BufferLock) next() (*result.SearchResult, bool) {
	for b.blockIdx < len(b.blocks) {
		blk := b.blocks[b.blockIdx]
		if b.itemIdx < blk.n {
			item := blk.items[b.itemIdx]
			blk.items[b.itemIdx] = nil // ownership moves to the caller
			b.itemIdx++
			return item, true
		}
		b.blockIdx++
		b.itemIdx = 0
	}
	if b.spill != nil && b.spillIdx < b.spill.count {
		rec := b.spill.read(b.spillIdx)
		b.spillIdx++
		dmd := (*index.DocMetadata)(nil)
		if b.cfg.Docs != nil {
			dmd = b.cfg.Docs.Borrow(rec.docID)
		}
		return &result.SearchResult{DocID: rec.docID, Score: rec.score, Dmd: dmd}, true
	}
	return nil, false
}

// Dispose releases every result still resident in the buffer (reached
// if the query aborted before yield drained it) and the spill file, if
// any.
func (b *BufferLock) Dispose(qctx *qp.Context) {
	for _, blk := range b.blocks {
		for i := 0; i < blk.n; i++ {
			if blk.items[i] != nil {
				result.Destroy(blk.items[i], b.cfg.Docs)
			}
		}
	}
	b.blocks = nil
	if b.spill != nil {
		b.spill.close()
		b.spill = nil
	}
}

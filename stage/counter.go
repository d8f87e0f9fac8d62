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
	"encoding/binary"

	"github.com/axiomhq/hyperloglog"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/result"
)

// Counter consumes its upstream to EOF, counting every OK result (spec.md
// §4.8). It is the engine behind FT.COUNT-style queries: the exact count
// is exposed via Count; it optionally also maintains an approximate
// distinct-docId sketch (HyperLogLog) for callers that want a cardinality
// estimate without paying for an exact count pass — a read-only
// supplement to the aggregate/reducer framework, which is otherwise out
// of scope for this module.
type Counter struct {
	upstream qp.Stage
	docs     index.DocTable
	count    uint64
	sketch   *hyperloglog.Sketch
}

// NewCounter returns a StageFactory for a Counter. If withSketch is
// true, the counter also feeds every docId into a HyperLogLog sketch
// retrievable via Estimate.
func NewCounter(docs index.DocTable, withSketch bool) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		c := &Counter{upstream: upstream, docs: docs}
		if withSketch {
			c.sketch = hyperloglog.New()
		}
		return c
	}
}

func (*Counter) Kind() qp.Kind { return qp.KindCounter }

func (c *Counter) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	for {
		st := c.upstream.Next(ctx, qctx, res)
		if st == qp.StatusEOF {
			// If upstream is a profiler, the terminal EOF read still
			// counts as one invocation, so the profiler's accounting
			// matches the pull count (spec.md §4.8).
			if prof, ok := c.upstream.(*Profiler); ok {
				prof.countInvocation()
			}
			return qp.StatusEOF
		}
		if st != qp.StatusOK {
			return st
		}
		c.count++
		if c.sketch != nil {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], res.DocID)
			c.sketch.Insert(buf[:])
		}
		result.Clear(res, c.docs)
	}
}

// Count returns the exact number of OK results observed so far.
func (c *Counter) Count() uint64 { return c.count }

// Estimate returns the approximate number of distinct docIds observed,
// or 0 if this counter was built without a sketch.
func (c *Counter) Estimate() uint64 {
	if c.sketch == nil {
		return 0
	}
	return c.sketch.Estimate()
}

func (*Counter) Dispose(*qp.Context) {}

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
	"github.com/blugelabs/queryproc/scoring"
)

// Scorer applies a pluggable scoring function to every upstream OK
// result (spec.md §4.3). It never reorders; it is purely transforming.
type Scorer struct {
	upstream qp.Stage
	score    scoring.Func
	docs     index.DocTable
}

// NewScorer returns a StageFactory for a Scorer wrapping fn.
func NewScorer(fn scoring.Func, docs index.DocTable) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		return &Scorer{upstream: upstream, score: fn, docs: docs}
	}
}

func (*Scorer) Kind() qp.Kind { return qp.KindScorer }

func (s *Scorer) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	for {
		st := s.upstream.Next(ctx, qctx, res)
		if st != qp.StatusOK {
			return st
		}

		score, explain := s.score(ctx, res.IndexResult, res.Dmd, qctx.MinScore())
		if explain != nil {
			res.Explain = explain
		}

		if score == result.FilterOut {
			qctx.DecrTotalResults()
			result.Clear(res, s.docs)
			continue
		}

		res.Score = score
		return qp.StatusOK
	}
}

// Dispose releases nothing: the scorer holds no heap-valued state of its
// own. The Pipeline disposes every stage directly (see Stage.Dispose);
// stages never recurse into their upstream's Dispose.
func (*Scorer) Dispose(*qp.Context) {}

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

// Pager implements an offset/limit window over its upstream (spec.md
// §4.6). Discarded results are fully cleared so their reference counts
// are released.
type Pager struct {
	upstream qp.Stage
	docs     index.DocTable
	offset   int
	limit    int
	count    int
}

// NewPager returns a StageFactory for a Pager with the given offset and
// limit.
func NewPager(offset, limit int, docs index.DocTable) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		return &Pager{upstream: upstream, docs: docs, offset: offset, limit: limit}
	}
}

func (*Pager) Kind() qp.Kind { return qp.KindPager }

func (p *Pager) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	for p.count < p.offset {
		st := p.upstream.Next(ctx, qctx, res)
		if st != qp.StatusOK {
			return st
		}
		p.count++
		result.Clear(res, p.docs)
	}

	if p.count >= p.offset+p.limit {
		return qp.StatusEOF
	}

	st := p.upstream.Next(ctx, qctx, res)
	if st != qp.StatusOK {
		return st
	}
	p.count++
	return qp.StatusOK
}

func (*Pager) Dispose(*qp.Context) {}

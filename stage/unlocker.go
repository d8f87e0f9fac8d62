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
	"github.com/blugelabs/queryproc/keyspace"
	"github.com/blugelabs/queryproc/result"
)

// Unlocker is placed at the tail, after every stage that needs keyspace
// access. When it receives EOF from upstream, it releases the GIL via
// its shared Handoff; otherwise it passes through unchanged (spec.md
// §4.10). Sharing the Handoff with the BufferLock stage that acquired
// it is what makes "released exactly once, only if acquired" hold on
// every path, including a query that never reached the yield phase.
type Unlocker struct {
	upstream qp.Stage
	handoff  *keyspace.Handoff
}

// NewUnlocker returns a StageFactory for an Unlocker releasing handoff's
// GIL on EOF.
func NewUnlocker(handoff *keyspace.Handoff) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		return &Unlocker{upstream: upstream, handoff: handoff}
	}
}

func (*Unlocker) Kind() qp.Kind { return qp.KindUnlocker }

func (u *Unlocker) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	st := u.upstream.Next(ctx, qctx, res)
	if st == qp.StatusEOF {
		u.handoff.Release()
	}
	return st
}

// Dispose releases the GIL if the query acquired it but aborted before
// reaching EOF (e.g. a fatal error or timeout mid-yield).
func (u *Unlocker) Dispose(*qp.Context) {
	u.handoff.Release()
}

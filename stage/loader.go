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
	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/rlookup"
)

// Loader materializes document fields into a result's row (spec.md
// §4.7). Configured in KeyList mode with an explicit key list, or
// AllKeys mode with none.
type Loader struct {
	upstream qp.Stage
	lookup   *rlookup.Lookup
	loader   rlookup.Loader
	keys     []*rlookup.Key
	mode     rlookup.LoadMode
}

// NewLoader returns a StageFactory for a field Loader. keys is ignored
// when mode is rlookup.AllKeys.
func NewLoader(lookup *rlookup.Lookup, loader rlookup.Loader, mode rlookup.LoadMode, keys []*rlookup.Key) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		return &Loader{upstream: upstream, lookup: lookup, loader: loader, mode: mode, keys: keys}
	}
}

func (*Loader) Kind() qp.Kind { return qp.KindLoader }

func (l *Loader) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	st := l.upstream.Next(ctx, qctx, res)
	if st != qp.StatusOK {
		return st
	}

	// An absent or deleted document is passed through unmodified; the
	// row is left as-is (spec.md §4.7).
	if res.Dmd == nil || res.Dmd.Deleted() {
		return qp.StatusOK
	}

	err := l.loader.LoadDocument(ctx, l.lookup, &res.Row, rlookup.LoadOptions{
		Dmd:         res.Dmd,
		Keys:        l.keys,
		Mode:        l.mode,
		NoSortables: true,
		ForceString: true,
	})
	if err != nil {
		// Load failures are data-quality defects: swallowed for this
		// result, optionally surfaced on the error sink without
		// aborting (spec.md §4.7, and the open question in §9 about
		// whether to log — this implementation logs, matching the
		// source's silence being the default but the sink being
		// available).
		qctx.Logger.Printf("queryproc: field load failed for doc %d: %v", res.DocID, err)
	}
	return qp.StatusOK
}

func (*Loader) Dispose(*qp.Context) {}

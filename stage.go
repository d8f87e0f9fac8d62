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

package queryproc

import (
	"context"

	"github.com/blugelabs/queryproc/result"
)

// Kind tags a Stage with which of the fixed set of pipeline roles it
// plays (spec.md §3 "Stage"). It replaces the teacher's/source's
// embedded-struct-with-function-pointers open dispatch (§9 design note)
// with a closed, inspectable tag.
type Kind int

const (
	KindIndex Kind = iota
	KindScorer
	KindMetrics
	KindSorter
	KindPager
	KindLoader
	KindCounter
	KindProfiler
	KindBufferLock
	KindUnlocker
	KindEOF
	KindCoordinator
)

func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "index"
	case KindScorer:
		return "scorer"
	case KindMetrics:
		return "metrics"
	case KindSorter:
		return "sorter"
	case KindPager:
		return "pager"
	case KindLoader:
		return "loader"
	case KindCounter:
		return "counter"
	case KindProfiler:
		return "profiler"
	case KindBufferLock:
		return "bufferlock"
	case KindUnlocker:
		return "unlocker"
	case KindEOF:
		return "eof"
	case KindCoordinator:
		return "coordinator"
	default:
		return "unknown"
	}
}

// Stage is one node of the pipeline. Implementations replace the
// teacher-language's embedded-base-struct pointer-cast polymorphism with
// a narrow interface (§9 design note): open dispatch over a closed set
// of kinds, uniform lifecycle.
type Stage interface {
	// Kind reports this stage's role.
	Kind() Kind
	// Next advances one step, writing into res on StatusOK. Stages
	// recurse upstream as needed (e.g. the scorer loops past a
	// filtered-out result); a single Next call may therefore perform
	// several upstream pulls.
	Next(ctx context.Context, qctx *Context, res *result.SearchResult) Status
	// Dispose releases any heap-valued state the stage owns,
	// including (for the sorter) any results still resident in its
	// heap. Dispose does not recurse to upstream; the Pipeline walks
	// the chain itself.
	Dispose(qctx *Context)
}

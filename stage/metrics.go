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

// Metrics copies every (key, value) pair from a result's IndexResult
// into its row (spec.md §4.4). It is pass-through otherwise.
type Metrics struct {
	upstream qp.Stage
	lookup   *rlookup.Lookup
}

// NewMetrics returns a StageFactory for a Metrics loader writing into
// lookup's keys.
func NewMetrics(lookup *rlookup.Lookup) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		return &Metrics{upstream: upstream, lookup: lookup}
	}
}

func (*Metrics) Kind() qp.Kind { return qp.KindMetrics }

func (m *Metrics) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	st := m.upstream.Next(ctx, qctx, res)
	if st != qp.StatusOK {
		return st
	}
	if res.IndexResult == nil {
		return qp.StatusOK
	}
	for _, metric := range res.IndexResult.Metrics {
		key := m.lookup.GetKey(metric.Key, false)
		res.Row.WriteKey(key, metric.Value)
	}
	return qp.StatusOK
}

func (*Metrics) Dispose(*qp.Context) {}

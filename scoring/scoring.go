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

// Package scoring defines the pluggable scoring-function contract the
// scorer stage applies (spec.md §6 item 3), plus one concrete
// implementation.
package scoring

import (
	"context"

	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/result"
)

// Func computes a relevance score for one posting. Returning
// result.FilterOut means the scorer stage should discard the result
// without counting it. A non-nil *result.Explain, if returned, is handed
// to the result; the plugin must be ready to produce a fresh one on its
// next call.
type Func func(ctx context.Context, ir *index.Result, dmd *index.DocMetadata, minScore float64) (float64, *result.Explain)

// VectorField names one named scoring input in index.Result.ScoringInput
// (expected to be a map[string]float64) and its static weight.
type VectorField struct {
	Name   string
	Weight float64
}

// DotProduct is a sample ScoreFunction: a weighted dot-product over
// named field vectors carried in the posting's ScoringInput, using
// gonum/floats for the vector arithmetic. It demonstrates the §6 item 3
// contract; embedders are expected to supply their own scoring logic in
// production (e.g. BM25, a learned ranking model).
type DotProduct struct {
	Fields []VectorField
}

// Score implements Func's signature via a method value; callers pass
// dp.Score where a Func is expected.
func (dp *DotProduct) Score(_ context.Context, ir *index.Result, _ *index.DocMetadata, minScore float64) (float64, *result.Explain) {
	inputs, ok := ir.ScoringInput.(map[string]float64)
	if !ok {
		return result.FilterOut, nil
	}

	weights := make([]float64, 0, len(dp.Fields))
	values := make([]float64, 0, len(dp.Fields))
	explain := &result.Explain{Message: "dot-product"}
	for _, f := range dp.Fields {
		v, ok := inputs[f.Name]
		if !ok {
			continue
		}
		weights = append(weights, f.Weight)
		values = append(values, v)
		explain.Children = append(explain.Children, &result.Explain{
			Value:   v * f.Weight,
			Message: f.Name,
		})
	}
	if len(values) == 0 {
		return result.FilterOut, nil
	}

	score := dot(weights, values)
	if score < minScore {
		return result.FilterOut, nil
	}
	explain.Value = score
	return score, explain
}

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

// Package stage implements the individual pipeline stages: index
// source, scorer, metrics loader, pager, field loader, counter,
// profiler, and the buffer-and-lock / unlocker pair. The top-K sorter
// lives in package collector.
package stage

import (
	"context"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/result"
)

// EOF is a zero-state Stage whose Next always reports StatusEOF,
// usable as the inert head of a degenerate chain. The original C
// implementation's RPGeneric_NextEOF serves the same role. The Index
// source does not use it: an Index built with no posting iterator
// checks for the nil iterator itself and returns StatusEOF.
type EOF struct{}

// NewEOF builds an EOF stage. It takes no upstream: it is always the
// head of whatever (degenerate) chain it appears in.
func NewEOF(upstream qp.Stage) qp.Stage {
	return &EOF{}
}

func (*EOF) Kind() qp.Kind { return qp.KindEOF }

func (*EOF) Next(context.Context, *qp.Context, *result.SearchResult) qp.Status {
	return qp.StatusEOF
}

func (*EOF) Dispose(*qp.Context) {}

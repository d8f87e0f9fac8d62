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

// StageFactory builds a Stage wired to the given upstream (nil for the
// first stage pushed — the source). Pipeline.Push calls the factory
// itself so the "new stage's upstream is the old tail" rule (spec.md
// §4.1) is enforced in one place instead of trusted to every caller.
//
// This replaces the teacher-language's raw upstream pointer forming a
// linked chain (§9 design note) with explicit unique-ownership: each
// stage is constructed already holding its one upstream, and cycles are
// impossible because a stage can only ever reference stages pushed
// before it.
type StageFactory func(upstream Stage) Stage

// Pipeline is the strictly linear chain of stages processing one query
// (spec.md §4.1). It has no branching and no fan-in.
type Pipeline struct {
	stages []Stage // push order; stages[0] is the source
}

// NewPipeline builds an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Push appends a new stage to the tail, built by factory with the
// current tail (nil if this is the first stage) as its upstream.
func (p *Pipeline) Push(factory StageFactory) Stage {
	var upstream Stage
	if n := len(p.stages); n > 0 {
		upstream = p.stages[n-1]
	}
	s := factory(upstream)
	p.stages = append(p.stages, s)
	return s
}

// Tail returns the most recently pushed stage, or nil if empty.
func (p *Pipeline) Tail() Stage {
	if len(p.stages) == 0 {
		return nil
	}
	return p.stages[len(p.stages)-1]
}

// Source returns the first pushed stage, or nil if empty. Its Kind
// determines how the chain was built: a local index-iterator source on
// this node, versus a network-receive source on a coordinator (spec.md
// §4.1).
func (p *Pipeline) Source() Stage {
	if len(p.stages) == 0 {
		return nil
	}
	return p.stages[0]
}

// Drain pulls Next on the tail until EOF, recycling one pooled
// SearchResult across every OK result. It returns the terminal status:
// StatusEOF on normal completion, or whatever non-OK/non-EOF status the
// chain produced (timeout, error).
func (p *Pipeline) Drain(ctx context.Context, qctx *Context) Status {
	tail := p.Tail()
	if tail == nil {
		return StatusEOF
	}
	res := result.New()
	defer result.Destroy(res, qctx.Sctx.Docs)

	for {
		st := tail.Next(ctx, qctx, res)
		switch st {
		case StatusOK:
			result.Clear(res, qctx.Sctx.Docs)
		case StatusEOF:
			return StatusEOF
		default:
			return st
		}
	}
}

// Each pulls Next on the tail until EOF, invoking fn with every OK
// result (fn must not retain res past its call — it is cleared and
// reused for the next pull).
func (p *Pipeline) Each(ctx context.Context, qctx *Context, fn func(*result.SearchResult)) Status {
	tail := p.Tail()
	if tail == nil {
		return StatusEOF
	}
	res := result.New()
	defer result.Destroy(res, qctx.Sctx.Docs)

	for {
		st := tail.Next(ctx, qctx, res)
		switch st {
		case StatusOK:
			fn(res)
			result.Clear(res, qctx.Sctx.Docs)
		case StatusEOF:
			return StatusEOF
		default:
			return st
		}
	}
}

// Dispose releases every stage's resources, tail to source, so the
// source is freed last (spec.md §3 "Lifecycle").
func (p *Pipeline) Dispose(qctx *Context) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stages[i].Dispose(qctx)
	}
}

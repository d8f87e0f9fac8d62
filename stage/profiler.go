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
	"time"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/result"
)

// Profiler transparently wraps any stage, measuring elapsed monotonic
// time and invocation count around every Next call (spec.md §4.9). A
// planner wraps every stage after planning so the chain reports
// per-stage timings.
type Profiler struct {
	upstream  qp.Stage
	wrapped   qp.Kind
	clock     clockFunc
	metrics   ProfilerMetrics
	elapsed   time.Duration
	calls     int64
	shardTag  string
}

// clockFunc abstracts time.Now so tests can inject a fake clock.
type clockFunc func() time.Time

// ProfilerMetrics is the optional Prometheus export surface a Profiler
// reports into, in addition to its own in-memory accounting. Nil fields
// are skipped, so a caller can opt into only the histogram, only the
// counter, or neither.
type ProfilerMetrics struct {
	Duration *prometheusObserverVec // labeled by stage kind
	Invoked  *prometheusCounterVec  // labeled by stage kind
}

// NewProfiler returns a StageFactory for a Profiler wrapping upstream's
// Kind. shardTag labels this profiler's Prometheus observations, so a
// caller that builds one pipeline per shard can attribute time per
// shard; pass "" outside coordinator fan-out. The coordinator package
// does not set it.
func NewProfiler(metrics ProfilerMetrics, shardTag string) qp.StageFactory {
	return func(upstream qp.Stage) qp.Stage {
		kind := qp.KindEOF
		if upstream != nil {
			kind = upstream.Kind()
		}
		return &Profiler{
			upstream: upstream,
			wrapped:  kind,
			clock:    time.Now,
			metrics:  metrics,
			shardTag: shardTag,
		}
	}
}

func (p *Profiler) Kind() qp.Kind { return p.wrapped }

func (p *Profiler) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	start := p.clock()
	st := p.upstream.Next(ctx, qctx, res)
	p.record(start)
	return st
}

// countInvocation lets the counter stage attribute its terminal EOF pull
// to this profiler's invocation count (spec.md §4.8's profiler
// interaction note), without charging it any elapsed time.
func (p *Profiler) countInvocation() {
	p.calls++
	if p.metrics.Invoked != nil {
		p.metrics.Invoked.inc(p.wrapped.String(), p.shardTag)
	}
}

func (p *Profiler) record(start time.Time) {
	d := p.clock().Sub(start)
	p.elapsed += d
	p.calls++
	if p.metrics.Duration != nil {
		p.metrics.Duration.observe(p.wrapped.String(), p.shardTag, d.Seconds())
	}
	if p.metrics.Invoked != nil {
		p.metrics.Invoked.inc(p.wrapped.String(), p.shardTag)
	}
}

// Elapsed returns the total wall-time spent in upstream.Next calls.
func (p *Profiler) Elapsed() time.Duration { return p.elapsed }

// Calls returns the number of Next invocations recorded.
func (p *Profiler) Calls() int64 { return p.calls }

func (*Profiler) Dispose(*qp.Context) {}

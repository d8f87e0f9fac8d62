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
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blugelabs/queryproc/index"
	"github.com/blugelabs/queryproc/keyspace"
)

// SearchContext is the handle a query's pipeline carries to the index,
// its doc table, and (in cluster mode) the sharding oracle.
type SearchContext struct {
	Docs       index.DocTable
	Sharding   index.ShardingOracle // nil outside cluster mode
	IsTrimming bool
}

// Context (PipelineContext in spec.md §3) is the single piece of
// mutable state shared by every stage of one query's pipeline. It is
// never shared across pipelines/queries, so its mutation is confined to
// the single worker thread that drains the chain (spec.md §5).
type Context struct {
	Sctx SearchContext

	// TimeoutPolicy is read by the sorter and the buffer-and-lock
	// stage; it is supplied at construction, not read from a mutable
	// global (§9 design note).
	TimeoutPolicy TimeoutPolicy

	Clock    keyspace.Clock
	Deadline time.Time

	Logger *log.Logger

	totalResults int64
	minScore     atomicFloat

	errMu    sync.Mutex
	firstErr error
}

// NewContext builds a Context with the given search handle, deadline,
// and timeout policy. clock and logger default to keyspace.SystemClock{}
// and log.Default() if nil.
func NewContext(sctx SearchContext, deadline time.Time, policy TimeoutPolicy, clock keyspace.Clock, logger *log.Logger) *Context {
	if clock == nil {
		clock = keyspace.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Context{
		Sctx:          sctx,
		TimeoutPolicy: policy,
		Clock:         clock,
		Deadline:      deadline,
		Logger:        logger,
	}
}

// Expired reports whether the context's deadline has passed.
func (c *Context) Expired() bool {
	return !c.Deadline.IsZero() && !c.Clock.Now().Before(c.Deadline)
}

// IncrTotalResults increments the running count of not-filtered-out
// results observed upstream of the sorter.
func (c *Context) IncrTotalResults() {
	atomic.AddInt64(&c.totalResults, 1)
}

// DecrTotalResults decrements it (e.g. when the scorer filters a result
// out, or a sort-key load fails). It never goes negative.
func (c *Context) DecrTotalResults() {
	for {
		cur := atomic.LoadInt64(&c.totalResults)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&c.totalResults, cur, cur-1) {
			return
		}
	}
}

// TotalResults returns the current count.
func (c *Context) TotalResults() uint64 {
	return uint64(atomic.LoadInt64(&c.totalResults))
}

// AddTotalResults adds n to the running count in one step; used by the
// coordinator to fold each shard's independent count into the merged
// query's total once every shard pipeline has drained.
func (c *Context) AddTotalResults(n uint64) {
	atomic.AddInt64(&c.totalResults, int64(n))
}

// MinScore returns the current lower bound passed to the scorer for
// early rejection.
func (c *Context) MinScore() float64 {
	return c.minScore.load()
}

// BumpMinScore raises the lower bound if score is higher than the
// current one; it never decreases (spec.md §3: "monotonically
// non-decreasing").
func (c *Context) BumpMinScore(score float64) {
	c.minScore.bumpUp(score)
}

// SetErr records err as the context's error if none has been recorded
// yet ("first error wins", spec.md §3).
func (c *Context) SetErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.firstErr == nil {
		c.firstErr = err
	}
}

// Err returns the first recorded error, or nil.
func (c *Context) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.firstErr
}

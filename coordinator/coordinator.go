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

// Package coordinator fans a query out across several shard pipelines
// and merges their output into a single stream, adapted from the
// teacher's MultiSearcherList.collectAllDocuments (multisearch.go): one
// errgroup goroutine per shard drains its own pipeline to EOF onto a
// shared channel sized off the shard count, closed once every goroutine
// returns. errgroup.Group bounds concurrency the way multisearch.go's
// errs.SetLimit(1000) does; unlike multisearch.go, a coordinator wants
// to know about every shard that failed, not just the first, so
// failures are additionally folded into a go-multierror.Error the way
// topn.go's collectAllDocuments goroutines aggregate per-hit errors.
package coordinator

import (
	"context"
	"log"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/result"
)

// maxConcurrentShards bounds how many shard goroutines run at once,
// mirroring multisearch.go's errs.SetLimit(1000) call.
const maxConcurrentShards = 1000

// Shard is one shard's fully assembled pipeline tail plus the Context
// it was built against. Each shard gets its own Context (it has its own
// DocTable/index), unlike a single-shard query where one Context is
// shared end to end — their totals are folded into the coordinator
// caller's Context only once every shard has drained (see Next).
type Shard struct {
	ID      string
	Tail    qp.Stage
	Context *qp.Context
}

// Config configures a Coordinator stage.
type Config struct {
	Shards []Shard

	// QueueSize bounds the merge channel's buffer. 0 picks a default
	// of twice the shard count plus one, after multisearch.go's docChan
	// sizing (len(searchers)*2).
	QueueSize int

	Logger *log.Logger
}

type shardResult struct {
	res     *result.SearchResult
	timeout bool
}

// Coordinator is the multi-shard fan-out/merge stage (KindCoordinator):
// it has no upstream of its own — like the source stage, it is always
// the head of whatever sub-chain it feeds — and instead pulls
// concurrently from every configured shard's pipeline.
type Coordinator struct {
	cfg Config

	startOnce sync.Once
	cancel    context.CancelFunc
	out       chan shardResult

	errMu    sync.Mutex
	shardErr *multierror.Error

	timedOut bool
	drained  bool
}

// NewCoordinator returns a StageFactory for a Coordinator stage. The
// supplied upstream is ignored, matching the source-stage convention.
func NewCoordinator(cfg Config) qp.StageFactory {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return func(qp.Stage) qp.Stage {
		return &Coordinator{cfg: cfg}
	}
}

func (*Coordinator) Kind() qp.Kind { return qp.KindCoordinator }

func (c *Coordinator) Next(ctx context.Context, qctx *qp.Context, res *result.SearchResult) qp.Status {
	c.startOnce.Do(func() { c.start(ctx) })

	sr, ok := <-c.out
	if !ok {
		if !c.drained {
			c.drained = true
			c.foldTotals(qctx)
		}
		switch {
		case c.timedOut:
			return qp.StatusTimedOut
		case c.shardErr != nil:
			qctx.SetErr(c.shardErr.ErrorOrNil())
			return qp.StatusError
		default:
			return qp.StatusEOF
		}
	}
	if sr.timeout {
		c.timedOut = true
		return qp.StatusTimedOut
	}
	*res = *sr.res
	return qp.StatusOK
}

// foldTotals adds every shard's independently-tracked totalResults into
// the caller's Context once all shards have finished.
func (c *Coordinator) foldTotals(qctx *qp.Context) {
	for _, s := range c.cfg.Shards {
		qctx.AddTotalResults(s.Context.TotalResults())
	}
}

func (c *Coordinator) start(parent context.Context) {
	size := c.cfg.QueueSize
	if size <= 0 {
		size = len(c.cfg.Shards)*2 + 1
	}
	c.out = make(chan shardResult, size)

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel

	errs := errgroup.Group{}
	errs.SetLimit(maxConcurrentShards)

	for i := range c.cfg.Shards {
		shard := c.cfg.Shards[i]
		errs.Go(func() error {
			if err := c.drainShard(ctx, shard); err != nil {
				c.recordShardErr(shard.ID, err)
			}
			return nil
		})
	}

	go func() {
		_ = errs.Wait() // every error already folded into c.shardErr by recordShardErr
		if c.shardErr != nil {
			c.cfg.Logger.Printf("coordinator: %s", c.shardErr)
		}
		close(c.out)
	}()
}

// recordShardErr folds a shard's failure into the aggregate, the way
// topn.go's collectAllDocuments goroutines fold per-hit failures into a
// shared multierror.Group rather than surfacing only the first one.
func (c *Coordinator) recordShardErr(shardID string, err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.shardErr = multierror.Append(c.shardErr, errors.Wrapf(err, "shard %q", shardID))
}

// drainShard pulls shard's pipeline to EOF, forwarding every result onto
// the shared channel. A TimedOut status is forwarded as a sentinel
// value rather than treated as an error, since the shard's own
// TimeoutPolicy has already decided whether that means "stop, nothing
// salvageable" (TimeoutFail) — in which case its own sub-pipeline would
// have already discarded everything before propagating the status.
func (c *Coordinator) drainShard(ctx context.Context, shard Shard) error {
	for {
		var res result.SearchResult
		st := shard.Tail.Next(ctx, shard.Context, &res)
		switch st {
		case qp.StatusOK:
			select {
			case c.out <- shardResult{res: &res}:
			case <-ctx.Done():
				result.Destroy(&res, shard.Context.Sctx.Docs)
				return ctx.Err()
			}
		case qp.StatusEOF:
			return nil
		case qp.StatusTimedOut:
			select {
			case c.out <- shardResult{timeout: true}:
			case <-ctx.Done():
			}
			return nil
		default:
			if err := shard.Context.Err(); err != nil {
				return errors.WithStack(err)
			}
			return errors.Errorf("stage returned status %v", st)
		}
	}
}

// Dispose cancels any still-running shard goroutines and drains and
// releases whatever results were already queued but never pulled by
// the caller, then disposes each shard's own pipeline.
func (c *Coordinator) Dispose(qctx *qp.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	if c.out != nil {
		for sr := range c.out {
			if sr.res != nil {
				result.Destroy(sr.res, qctx.Sctx.Docs)
			}
		}
	}
	for _, s := range c.cfg.Shards {
		s.Tail.Dispose(s.Context)
	}
}

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

// Command queryproc-debug assembles a synthetic pipeline from flags and
// runs it to completion, printing each stage's profiler output. It is a
// developer tool, not the product's wire/cluster surface.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/collector"
	"github.com/blugelabs/queryproc/result"
	"github.com/blugelabs/queryproc/stage"
)

var (
	flagDocs    int
	flagK       int
	flagSkip    int
	flagSeed    int64
	flagTimeout time.Duration
	flagByField bool
)

func main() {
	root := &cobra.Command{
		Use:   "queryproc-debug",
		Short: "Run a synthetic result-processing pipeline and print its profile",
		RunE:  run,
	}
	root.Flags().IntVar(&flagDocs, "docs", 1000, "number of synthetic postings to feed the source stage")
	root.Flags().IntVar(&flagK, "k", 10, "top-K size passed to the sorter (0 = unbounded)")
	root.Flags().IntVar(&flagSkip, "skip", 0, "number of best-ranked results the sorter discards before yielding")
	root.Flags().Int64Var(&flagSeed, "seed", 1, "random seed for synthetic scores")
	root.Flags().DurationVar(&flagTimeout, "timeout", 0, "pipeline deadline (0 disables it)")
	root.Flags().BoolVar(&flagByField, "by-field", false, "sort by the synthetic \"price\" field instead of score")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	fixture := newFixture(flagDocs, flagSeed)
	metrics := stage.ProfilerMetrics{}

	pipeline := qp.NewPipeline()
	pushProfiled := func(factory qp.StageFactory) *stage.Profiler {
		pipeline.Push(factory)
		return pipeline.Push(stage.NewProfiler(metrics, "")).(*stage.Profiler)
	}

	var profiled []*stage.Profiler
	profiled = append(profiled, pushProfiled(stage.NewIndex(stage.IndexConfig{
		Iter: fixture.iterator(),
		Docs: fixture.docs,
	})))
	profiled = append(profiled, pushProfiled(stage.NewScorer(fixture.score, fixture.docs)))

	less := collector.ByScore()
	if flagByField {
		less = collector.ByFields([]collector.SortKey{{Key: fixture.priceKey}}, fixture.ascend)
	}
	profiled = append(profiled, pushProfiled(collector.NewSorter(collector.Config{
		Size:   flagK,
		Skip:   flagSkip,
		Less:   less,
		Lookup: fixture.lookup,
		Docs:   fixture.docs,
	})))

	var deadline time.Time
	if flagTimeout > 0 {
		deadline = time.Now().Add(flagTimeout)
	}
	qctx := qp.NewContext(qp.SearchContext{Docs: fixture.docs}, deadline, qp.TimeoutReturn, nil, nil)
	defer pipeline.Dispose(qctx)

	printResults(pipeline, qctx)
	printProfile(profiled)
	return nil
}

func printResults(pipeline *qp.Pipeline, qctx *qp.Context) {
	n := 0
	st := pipeline.Each(context.Background(), qctx, func(res *result.SearchResult) {
		n++
		fmt.Printf("%4d  doc=%-6d score=%.4f\n", n, res.DocID, res.Score)
	})
	switch st {
	case qp.StatusEOF:
		fmt.Printf("-- %d results, totalResults=%d --\n", n, qctx.TotalResults())
	case qp.StatusTimedOut:
		fmt.Printf("-- timed out after %d results --\n", n)
	default:
		fmt.Printf("-- error: %v --\n", qctx.Err())
	}
}

func printProfile(stages []*stage.Profiler) {
	fmt.Println("stage            calls     elapsed")
	for _, p := range stages {
		fmt.Printf("%-15s  %6d  %10s\n", p.Kind(), p.Calls(), p.Elapsed())
	}
}

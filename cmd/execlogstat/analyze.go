// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/data/text"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/avesta-b/execlogstat/internal/execlog"
	"github.com/avesta-b/execlogstat/internal/report"
)

func cmdAnalyze() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "analyze <execution log>",
		ShortDesc: "analyzes a Bazel execution log",
		LongDesc: text.Doc(`
			Parses a Bazel execution log, auto-detecting the compact
			(zstd-compressed) or verbose binary encoding, and prints
			performance reports for the build it records.

			The overall summary, the slowest actions and the per-mnemonic
			breakdown are always printed; the remaining reports are enabled
			by their flags.
		`),
		CommandRun: func() subcommands.CommandRun {
			r := &analyzeRun{}
			r.Flags.IntVar(&r.topN, "top-n", 10, "Number of actions to show in ranked reports.")
			r.Flags.BoolVar(&r.cacheMetrics, "cache-metrics", true, "Report remote cache performance.")
			r.Flags.BoolVar(&r.phaseTimings, "phase-timings", false, "Report per-phase timings of the slowest executed actions.")
			r.Flags.BoolVar(&r.inputAnalysis, "input-analysis", false, "Report actions with the largest inputs.")
			r.Flags.BoolVar(&r.outputAnalysis, "output-analysis", false, "Report actions with the largest outputs.")
			r.Flags.BoolVar(&r.retries, "retries", false, "Report actions that failed or spent time in retries.")
			r.Flags.BoolVar(&r.aggregatePhases, "aggregate-phases", false, "Report phase totals across all executed actions.")
			r.Flags.BoolVar(&r.memoryAnalysis, "memory-analysis", false, "Report actions closest to their memory limit.")
			r.Flags.BoolVar(&r.executionComparison, "execution-comparison", false, "Compare remote and local execution times per mnemonic.")
			r.Flags.BoolVar(&r.queueAnalysis, "queue-analysis", false, "Report actions with the longest queue times.")
			return r
		},
	}
}

type analyzeRun struct {
	subcommands.CommandRunBase

	topN                int
	cacheMetrics        bool
	phaseTimings        bool
	inputAnalysis       bool
	outputAnalysis      bool
	retries             bool
	aggregatePhases     bool
	memoryAnalysis      bool
	executionComparison bool
	queueAnalysis       bool
}

func (r *analyzeRun) validate(args []string) error {
	switch {
	case len(args) != 1:
		return errors.New("expected exactly one argument: the execution log path")
	case r.topN <= 0:
		return errors.New("-top-n must be positive")
	default:
		return nil
	}
}

func (r *analyzeRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	if err := r.validate(args); err != nil {
		return r.done(ctx, err)
	}

	spawns, err := execlog.ParseFile(ctx, args[0])
	if err != nil {
		return r.done(ctx, err)
	}
	if len(spawns) == 0 {
		fmt.Println("Execution log is empty or contains no spawn actions. No metrics to report.")
		return 0
	}
	logging.Infof(ctx, "parsed and reconstructed %d spawn entries", len(spawns))

	out := os.Stdout
	printHeader(out, args[0])
	printOverview(out, report.Summarize(spawns))
	printTopSlowest(out, report.TopSlowest(spawns, r.topN), r.topN)
	printByMnemonic(out, report.ByMnemonic(spawns))
	if r.cacheMetrics {
		printCachePerformance(out, report.CachePerformance(spawns))
	}
	if r.phaseTimings {
		printPhaseTimings(out, report.PhaseTimings(spawns, r.topN), r.topN)
	}
	if r.inputAnalysis {
		printInputSizes(out, report.InputSizes(spawns, r.topN), r.topN)
	}
	if r.retries {
		printRetriesAndFailures(out, report.RetriesAndFailures(spawns))
	}
	if r.aggregatePhases {
		printAggregatePhases(out, report.AggregatePhases(spawns))
	}
	if r.outputAnalysis {
		printOutputSizes(out, report.OutputSizes(spawns, r.topN), r.topN)
	}
	if r.memoryAnalysis {
		printMemoryUsage(out, report.MemoryUsage(spawns, r.topN), r.topN)
	}
	if r.executionComparison {
		printExecutionComparison(out, report.ExecutionComparison(spawns))
	}
	if r.queueAnalysis {
		printQueueTimes(out, report.QueueTimes(spawns, r.topN), r.topN)
	}
	return 0
}

func (r *analyzeRun) done(ctx context.Context, err error) int {
	if err != nil {
		logging.Errorf(ctx, "%s", err)
		return 1
	}
	return 0
}

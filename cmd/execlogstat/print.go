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
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/avesta-b/execlogstat/internal/report"
)

// Rendering of the report tables. The engine hands back fixed-shape rows;
// everything below is formatting only.

func newTab(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func megabytes(bytes int64) string {
	return fmt.Sprintf("%.2fMB", float64(bytes)/(1<<20))
}

func printHeader(w io.Writer, path string) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, " Bazel Execution Log Analysis Report")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Log file: %s\n\n", path)
}

func printOverview(w io.Writer, o report.Overview) {
	fmt.Fprintln(w, "--- Overall Summary ---")
	fmt.Fprintf(w, "Total Actions: %d\n", o.TotalActions)
	pct := 0.0
	if o.TotalActions > 0 {
		pct = float64(o.CacheHits) / float64(o.TotalActions) * 100
	}
	fmt.Fprintf(w, "Cache Hits: %d (%.2f%%)\n\n", o.CacheHits, pct)
}

func printTopSlowest(w io.Writer, rows []report.SlowestAction, n int) {
	fmt.Fprintf(w, "--- Top %d Slowest Actions ---\n", n)
	tw := newTab(w)
	fmt.Fprintln(tw, "Time\tMnemonic\tTarget")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", seconds(row.Total), row.Mnemonic, row.TargetLabel)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printByMnemonic(w io.Writer, rows []report.MnemonicSummary) {
	fmt.Fprintln(w, "--- Analysis by Mnemonic ---")
	tw := newTab(w)
	fmt.Fprintln(tw, "Mnemonic\tCount\tCache Hits\tTotal Time\tAvg Time")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\t%s\n",
			row.Mnemonic, row.Count,
			float64(row.CacheHits)/float64(row.Count)*100,
			seconds(row.Total), seconds(row.Avg))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printCachePerformance(w io.Writer, st report.CacheStats) {
	fmt.Fprintln(w, "--- Remote Cache Performance ---")
	if st.Hits == 0 {
		fmt.Fprintln(w, "No remote cache hits found in the log.")
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "Remote Cache Hits Count: %d\n", st.Hits)
	fmt.Fprintf(w, "Total Data Downloaded: %.2f MB\n", float64(st.BytesDownloaded)/1e6)
	fmt.Fprintf(w, "Total Time Fetching from Cache: %.2fs\n", st.FetchTime.Seconds())
	if st.RateKnown {
		fmt.Fprintf(w, "Average Download Rate: %.2f MB/s\n", st.RateMBps)
	} else {
		fmt.Fprintln(w, "Average Download Rate: N/A (total fetch time is negligible)")
	}
	fmt.Fprintln(w)
}

func printPhaseTimings(w io.Writer, rows []report.PhaseTiming, n int) {
	fmt.Fprintf(w, "--- Top %d Slowest Actions (Phase Timings) ---\n", n)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No executed actions found (all were cache hits).")
		fmt.Fprintln(w)
		return
	}
	tw := newTab(w)
	fmt.Fprintln(tw, "Total\tQueue\tSetup\tUpload\tExecute\tFetch\tOverhead\tTarget")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.1f%%\t%s\n",
			seconds(row.Total), seconds(row.Queue), seconds(row.Setup),
			seconds(row.Upload), seconds(row.Execution), seconds(row.Fetch),
			row.OverheadPct, row.TargetLabel)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printInputSizes(w io.Writer, rows []report.InputSize, n int) {
	fmt.Fprintf(w, "--- Top %d Actions by Input Size ---\n", n)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No actions with input size data found in the log.")
		fmt.Fprintln(w)
		return
	}
	tw := newTab(w)
	fmt.Fprintln(tw, "Input Size\tInput Files\tTarget")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", megabytes(row.InputBytes), row.InputFiles, row.TargetLabel)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printOutputSizes(w io.Writer, rows []report.OutputSize, n int) {
	fmt.Fprintf(w, "--- Top %d Actions by Output Size ---\n", n)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No actions with output size data found in the log.")
		fmt.Fprintln(w)
		return
	}
	tw := newTab(w)
	fmt.Fprintln(tw, "Output Size\tOutput Files\tTarget")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", megabytes(row.OutputBytes), row.OutputFiles, row.TargetLabel)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printRetriesAndFailures(w io.Writer, rows []report.Problem) {
	fmt.Fprintln(w, "--- Actions with Failures or Retries ---")
	if len(rows) == 0 {
		fmt.Fprintln(w, "No actions with failures or retries found.")
		fmt.Fprintln(w)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "Target: %s\n", row.TargetLabel)
		if row.Status != "" {
			fmt.Fprintf(w, "  Status: %s (Exit Code: %d)\n", row.Status, row.ExitCode)
		}
		if row.RetryTime > 0 {
			fmt.Fprintf(w, "  Time in Retries: %s\n", seconds(row.RetryTime))
		}
	}
	fmt.Fprintln(w)
}

func printAggregatePhases(w io.Writer, agg report.PhaseAggregate) {
	fmt.Fprintln(w, "--- Aggregate Phase Timings (Executed Actions) ---")
	if agg.ExecutedActions == 0 {
		fmt.Fprintln(w, "No executed actions found (all were cache hits).")
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "Executed Actions: %d\n", agg.ExecutedActions)
	fmt.Fprintf(w, "Total Execution Time: %.2fs\n\n", agg.Total.Seconds())
	tw := newTab(w)
	fmt.Fprintln(tw, "Phase\tTime\t% of Total")
	for _, p := range agg.Phases {
		fmt.Fprintf(tw, "%s\t%.2fs\t%.1f%%\n", p.Name, p.Time.Seconds(), p.Pct)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printMemoryUsage(w io.Writer, rows []report.MemoryUse, n int) {
	fmt.Fprintf(w, "--- Top %d Actions by Memory Usage vs. Limit ---\n", n)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No actions with memory limit data found in the log.")
		fmt.Fprintln(w)
		return
	}
	tw := newTab(w)
	fmt.Fprintln(tw, "Memory Used\tMemory Limit\tUsage %\tTarget")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%s\n",
			megabytes(row.EstimateBytes), megabytes(row.LimitBytes),
			row.Ratio*100, row.TargetLabel)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printExecutionComparison(w io.Writer, rows []report.ExecutionSides) {
	fmt.Fprintln(w, "--- Remote vs. Local Execution Time Comparison ---")
	if len(rows) == 0 {
		fmt.Fprintln(w, "No mnemonics found with both remote and local executions.")
		fmt.Fprintln(w)
		return
	}
	tw := newTab(w)
	fmt.Fprintln(tw, "Mnemonic\tRemote\tAvg Time\tLocal\tAvg Time\tDifference")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n",
			row.Mnemonic, row.RemoteCount, seconds(row.RemoteAvg),
			row.LocalCount, seconds(row.LocalAvg), row.Verdict)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printQueueTimes(w io.Writer, rows []report.QueuedAction, n int) {
	fmt.Fprintf(w, "--- Top %d Actions by Queue Time ---\n", n)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No executed actions found (all were cache hits).")
		fmt.Fprintln(w)
		return
	}
	tw := newTab(w)
	fmt.Fprintln(tw, "Queue Time\tTotal Time\tTarget")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", seconds(row.Queue), seconds(row.Total), row.TargetLabel)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

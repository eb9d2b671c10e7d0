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

// Package report computes analytical reports over a parsed execution log.
//
// Every report is a pure function of the record collection: none mutates
// its input, reports have no ordering dependency on each other, and each
// returns a fixed-shape table (an ordered slice of rows, or a summary
// struct) that any renderer can format. An absent duration metric counts
// as zero for ranking; reports that instead require the metric to be
// present say so.
//
// Rankings are descending by the stated key, with ties keeping their
// pre-sort relative order. Degenerate inputs (empty log, no qualifying
// records) yield empty tables, never errors.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avesta-b/execlogstat/internal/spawnpb"
)

// remoteCacheHitRunner is the runner string Bazel assigns to actions served
// entirely from the remote cache.
const remoteCacheHitRunner = "remote cache hit"

// minFetchTime is the floor below which a download rate is meaningless.
const minFetchTime = time.Millisecond

// Overview summarizes the whole log.
type Overview struct {
	TotalActions int
	CacheHits    int
}

// Summarize computes the Overview.
func Summarize(spawns []*spawnpb.SpawnExec) Overview {
	o := Overview{TotalActions: len(spawns)}
	for _, s := range spawns {
		if s.CacheHit {
			o.CacheHits++
		}
	}
	return o
}

// SlowestAction is one row of the top-N-slowest report.
type SlowestAction struct {
	Mnemonic    string
	TargetLabel string
	Total       time.Duration
}

// TopSlowest ranks all actions by total duration and keeps the slowest n.
func TopSlowest(spawns []*spawnpb.SpawnExec, n int) []SlowestAction {
	rows := make([]SlowestAction, 0, len(spawns))
	for _, s := range spawns {
		rows = append(rows, SlowestAction{
			Mnemonic:    s.Mnemonic,
			TargetLabel: s.TargetLabel,
			Total:       s.GetMetrics().GetTotalTime().AsDuration(),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total > rows[j].Total })
	return truncate(rows, n)
}

// MnemonicSummary is one row of the per-mnemonic report.
type MnemonicSummary struct {
	Mnemonic  string
	Count     int
	CacheHits int
	Total     time.Duration
	Avg       time.Duration
}

// ByMnemonic groups actions by mnemonic, sorted by summed duration
// descending.
func ByMnemonic(spawns []*spawnpb.SpawnExec) []MnemonicSummary {
	byName := map[string]*MnemonicSummary{}
	var order []string
	for _, s := range spawns {
		row := byName[s.Mnemonic]
		if row == nil {
			row = &MnemonicSummary{Mnemonic: s.Mnemonic}
			byName[s.Mnemonic] = row
			order = append(order, s.Mnemonic)
		}
		row.Count++
		if s.CacheHit {
			row.CacheHits++
		}
		row.Total += s.GetMetrics().GetTotalTime().AsDuration()
	}
	rows := make([]MnemonicSummary, 0, len(order))
	for _, name := range order {
		row := *byName[name]
		row.Avg = row.Total / time.Duration(row.Count)
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total > rows[j].Total })
	return rows
}

// CacheStats is the remote cache economics summary.
type CacheStats struct {
	Hits            int
	BytesDownloaded int64
	FetchTime       time.Duration
	// RateMBps is the average download throughput. It is meaningless when
	// the summed fetch time is negligible, in which case RateKnown is
	// false.
	RateMBps  float64
	RateKnown bool
}

// CachePerformance sums output bytes and fetch time across remote cache
// hits.
func CachePerformance(spawns []*spawnpb.SpawnExec) CacheStats {
	var st CacheStats
	for _, s := range spawns {
		if s.Runner != remoteCacheHitRunner {
			continue
		}
		st.Hits++
		for _, f := range s.ActualOutputs {
			st.BytesDownloaded += f.GetDigest().GetSizeBytes()
		}
		st.FetchTime += s.GetMetrics().GetFetchTime().AsDuration()
	}
	if st.FetchTime > minFetchTime {
		st.RateMBps = (float64(st.BytesDownloaded) / 1e6) / st.FetchTime.Seconds()
		st.RateKnown = true
	}
	return st
}

// PhaseTiming is one row of the phase-timings report.
type PhaseTiming struct {
	TargetLabel string
	Total       time.Duration
	Queue       time.Duration
	Setup       time.Duration
	Upload      time.Duration
	Execution   time.Duration
	Fetch       time.Duration
	// OverheadPct is (Total - Execution) / Total as a percentage, 0 when
	// Total is 0.
	OverheadPct float64
}

// PhaseTimings breaks the n slowest executed actions into phases. Cache
// hits are excluded: their phases say nothing about execution cost.
func PhaseTimings(spawns []*spawnpb.SpawnExec, n int) []PhaseTiming {
	var rows []PhaseTiming
	for _, s := range spawns {
		if s.CacheHit {
			continue
		}
		m := s.GetMetrics()
		row := PhaseTiming{
			TargetLabel: s.TargetLabel,
			Total:       m.GetTotalTime().AsDuration(),
			Queue:       m.GetQueueTime().AsDuration(),
			Setup:       m.GetSetupTime().AsDuration(),
			Upload:      m.GetUploadTime().AsDuration(),
			Execution:   m.GetExecutionWallTime().AsDuration(),
			Fetch:       m.GetFetchTime().AsDuration(),
		}
		if row.Total > 0 {
			row.OverheadPct = float64(row.Total-row.Execution) / float64(row.Total) * 100
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total > rows[j].Total })
	return truncate(rows, n)
}

// InputSize is one row of the input-size report.
type InputSize struct {
	TargetLabel string
	InputBytes  int64
	InputFiles  int64
}

// InputSizes ranks actions by declared input bytes. Actions with no input
// size data are excluded before ranking.
func InputSizes(spawns []*spawnpb.SpawnExec, n int) []InputSize {
	var rows []InputSize
	for _, s := range spawns {
		m := s.GetMetrics()
		if m.GetInputBytes() == 0 {
			continue
		}
		rows = append(rows, InputSize{
			TargetLabel: s.TargetLabel,
			InputBytes:  m.GetInputBytes(),
			InputFiles:  m.GetInputFiles(),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].InputBytes > rows[j].InputBytes })
	return truncate(rows, n)
}

// OutputSize is one row of the output-size report.
type OutputSize struct {
	TargetLabel string
	OutputBytes int64
	OutputFiles int
}

// OutputSizes ranks actions by the summed digest sizes of their actual
// outputs. Actions summing to zero are excluded before ranking.
func OutputSizes(spawns []*spawnpb.SpawnExec, n int) []OutputSize {
	var rows []OutputSize
	for _, s := range spawns {
		var total int64
		for _, f := range s.ActualOutputs {
			total += f.GetDigest().GetSizeBytes()
		}
		if total == 0 {
			continue
		}
		rows = append(rows, OutputSize{
			TargetLabel: s.TargetLabel,
			OutputBytes: total,
			OutputFiles: len(s.ActualOutputs),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OutputBytes > rows[j].OutputBytes })
	return truncate(rows, n)
}

// Problem is one row of the retries-and-failures report.
type Problem struct {
	TargetLabel string
	Status      string
	ExitCode    int32
	RetryTime   time.Duration
}

// RetriesAndFailures lists actions with a non-empty status or time spent in
// retries, in log order.
func RetriesAndFailures(spawns []*spawnpb.SpawnExec) []Problem {
	var rows []Problem
	for _, s := range spawns {
		retry := s.GetMetrics().GetRetryTime().AsDuration()
		if s.Status == "" && retry == 0 {
			continue
		}
		rows = append(rows, Problem{
			TargetLabel: s.TargetLabel,
			Status:      s.Status,
			ExitCode:    s.ExitCode,
			RetryTime:   retry,
		})
	}
	return rows
}

// PhaseTotal is one phase of the aggregate-phases report.
type PhaseTotal struct {
	Name string
	Time time.Duration
	// Pct is this phase's share of the summed total duration, 0 when the
	// total is 0.
	Pct float64
}

// PhaseAggregate sums each phase across all executed (non-cache-hit)
// actions.
type PhaseAggregate struct {
	ExecutedActions int
	Total           time.Duration
	Phases          []PhaseTotal
}

// AggregatePhases computes the PhaseAggregate.
func AggregatePhases(spawns []*spawnpb.SpawnExec) PhaseAggregate {
	var agg PhaseAggregate
	var queue, setup, upload, execution, fetch, retry time.Duration
	for _, s := range spawns {
		if s.CacheHit {
			continue
		}
		agg.ExecutedActions++
		m := s.GetMetrics()
		agg.Total += m.GetTotalTime().AsDuration()
		queue += m.GetQueueTime().AsDuration()
		setup += m.GetSetupTime().AsDuration()
		upload += m.GetUploadTime().AsDuration()
		execution += m.GetExecutionWallTime().AsDuration()
		fetch += m.GetFetchTime().AsDuration()
		retry += m.GetRetryTime().AsDuration()
	}
	agg.Phases = []PhaseTotal{
		{Name: "Queue", Time: queue},
		{Name: "Setup", Time: setup},
		{Name: "Upload", Time: upload},
		{Name: "Execution", Time: execution},
		{Name: "Fetch", Time: fetch},
		{Name: "Retry", Time: retry},
	}
	if agg.Total > 0 {
		for i := range agg.Phases {
			agg.Phases[i].Pct = float64(agg.Phases[i].Time) / float64(agg.Total) * 100
		}
	}
	return agg
}

// MemoryUse is one row of the memory report.
type MemoryUse struct {
	TargetLabel   string
	EstimateBytes int64
	LimitBytes    int64
	Ratio         float64
}

// MemoryUsage ranks actions by estimate/limit ratio. Actions without a
// memory limit are excluded: the ratio is undefined, never a division.
func MemoryUsage(spawns []*spawnpb.SpawnExec, n int) []MemoryUse {
	var rows []MemoryUse
	for _, s := range spawns {
		m := s.GetMetrics()
		limit := m.GetMemoryBytesLimit()
		if limit <= 0 {
			continue
		}
		rows = append(rows, MemoryUse{
			TargetLabel:   s.TargetLabel,
			EstimateBytes: m.GetMemoryEstimateBytes(),
			LimitBytes:    limit,
			Ratio:         float64(m.GetMemoryEstimateBytes()) / float64(limit),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Ratio > rows[j].Ratio })
	return truncate(rows, n)
}

// ExecutionSides compares remote and local execution of one mnemonic.
type ExecutionSides struct {
	Mnemonic    string
	RemoteCount int
	RemoteAvg   time.Duration
	LocalCount  int
	LocalAvg    time.Duration
	// Ratio is RemoteAvg/LocalAvg, 0 when LocalAvg is 0.
	Ratio float64
	// Verdict renders the ratio: "2.5x slower", "1.3x faster" or "N/A".
	Verdict string
}

// ExecutionComparison compares remote vs local execution wall time per
// mnemonic.
//
// Cache hits and records with no measured execution wall time are excluded;
// a runner containing "remote" counts as remote, one containing "sandbox"
// or "local" as local, anything else as neither. Only mnemonics with at
// least one record on each side appear, sorted by mnemonic.
func ExecutionComparison(spawns []*spawnpb.SpawnExec) []ExecutionSides {
	type sideTotals struct {
		count int
		total time.Duration
	}
	type stats struct {
		remote sideTotals
		local  sideTotals
	}
	byName := map[string]*stats{}
	for _, s := range spawns {
		if s.CacheHit {
			continue
		}
		wall := s.GetMetrics().GetExecutionWallTime()
		if wall == nil {
			continue
		}
		isRemote := strings.Contains(s.Runner, "remote")
		isLocal := strings.Contains(s.Runner, "sandbox") || strings.Contains(s.Runner, "local")
		if !isRemote && !isLocal {
			continue
		}
		st := byName[s.Mnemonic]
		if st == nil {
			st = &stats{}
			byName[s.Mnemonic] = st
		}
		side := &st.local
		if isRemote {
			side = &st.remote
		}
		side.count++
		side.total += wall.AsDuration()
	}

	var rows []ExecutionSides
	for name, st := range byName {
		if st.remote.count == 0 || st.local.count == 0 {
			continue
		}
		row := ExecutionSides{
			Mnemonic:    name,
			RemoteCount: st.remote.count,
			RemoteAvg:   st.remote.total / time.Duration(st.remote.count),
			LocalCount:  st.local.count,
			LocalAvg:    st.local.total / time.Duration(st.local.count),
		}
		if row.LocalAvg > 0 {
			row.Ratio = float64(row.RemoteAvg) / float64(row.LocalAvg)
		}
		switch {
		case row.Ratio > 1:
			row.Verdict = fmt.Sprintf("%.1fx slower", row.Ratio)
		case row.Ratio > 0 && row.Ratio < 1:
			row.Verdict = fmt.Sprintf("%.1fx faster", 1/row.Ratio)
		default:
			row.Verdict = "N/A"
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Mnemonic < rows[j].Mnemonic })
	return rows
}

// QueuedAction is one row of the queue-time report.
type QueuedAction struct {
	TargetLabel string
	Queue       time.Duration
	Total       time.Duration
}

// QueueTimes ranks executed (non-cache-hit) actions by queue duration.
func QueueTimes(spawns []*spawnpb.SpawnExec, n int) []QueuedAction {
	var rows []QueuedAction
	for _, s := range spawns {
		if s.CacheHit {
			continue
		}
		m := s.GetMetrics()
		rows = append(rows, QueuedAction{
			TargetLabel: s.TargetLabel,
			Queue:       m.GetQueueTime().AsDuration(),
			Total:       m.GetTotalTime().AsDuration(),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Queue > rows[j].Queue })
	return truncate(rows, n)
}

func truncate[T any](rows []T, n int) []T {
	if n >= 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

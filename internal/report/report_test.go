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

package report

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"

	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"github.com/avesta-b/execlogstat/internal/spawnpb"
)

func spawn(mnemonic, target string, total time.Duration, cacheHit bool) *spawnpb.SpawnExec {
	return &spawnpb.SpawnExec{
		Mnemonic:    mnemonic,
		TargetLabel: target,
		CacheHit:    cacheHit,
		Metrics:     &spawnpb.SpawnMetrics{TotalTime: durationpb.New(total)},
	}
}

// threeSpawns is the worked example: two compiles (one cached) and a link.
func threeSpawns() []*spawnpb.SpawnExec {
	return []*spawnpb.SpawnExec{
		spawn("Cc", "//a", 2*time.Second, false),
		spawn("Cc", "//b", 1*time.Second, true),
		spawn("Link", "//c", 3*time.Second, false),
	}
}

func TestTopSlowestAndByMnemonic(t *testing.T) {
	t.Parallel()

	ftt.Run(`With two compiles and a link`, t, func(t *ftt.Test) {
		spawns := threeSpawns()

		t.Run(`TopSlowest ranks by total duration`, func(t *ftt.Test) {
			rows := TopSlowest(spawns, 1)
			assert.Loosely(t, rows, should.HaveLength(1))
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//c"))
			assert.Loosely(t, rows[0].Total, should.Equal(3*time.Second))
		})

		t.Run(`absent metrics rank as zero`, func(t *ftt.Test) {
			spawns = append(spawns, &spawnpb.SpawnExec{Mnemonic: "Degenerate", TargetLabel: "//z"})
			rows := TopSlowest(spawns, 10)
			assert.Loosely(t, rows, should.HaveLength(4))
			assert.Loosely(t, rows[3].TargetLabel, should.Equal("//z"))
			assert.Loosely(t, rows[3].Total, should.BeZero)
		})

		t.Run(`ties keep their pre-sort order`, func(t *ftt.Test) {
			spawns := []*spawnpb.SpawnExec{
				spawn("Cc", "//first", time.Second, false),
				spawn("Cc", "//second", time.Second, false),
				spawn("Cc", "//third", time.Second, false),
			}
			rows := TopSlowest(spawns, 3)
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//first"))
			assert.Loosely(t, rows[1].TargetLabel, should.Equal("//second"))
			assert.Loosely(t, rows[2].TargetLabel, should.Equal("//third"))
		})

		t.Run(`ByMnemonic groups and sorts by summed duration`, func(t *ftt.Test) {
			rows := ByMnemonic(spawns)
			assert.Loosely(t, rows, should.HaveLength(2))
			// Cc sums to 3s and ties with Link; Cc appeared first in the log.
			assert.Loosely(t, rows[0].Mnemonic, should.Equal("Cc"))
			assert.Loosely(t, rows[0].Count, should.Equal(2))
			assert.Loosely(t, rows[0].CacheHits, should.Equal(1))
			assert.Loosely(t, rows[0].Total, should.Equal(3*time.Second))
			assert.Loosely(t, rows[0].Avg, should.Equal(1500*time.Millisecond))
			assert.Loosely(t, rows[1].Mnemonic, should.Equal("Link"))
		})

		t.Run(`Summarize counts cache hits`, func(t *ftt.Test) {
			o := Summarize(spawns)
			assert.Loosely(t, o.TotalActions, should.Equal(3))
			assert.Loosely(t, o.CacheHits, should.Equal(1))
		})

		t.Run(`empty input yields empty tables`, func(t *ftt.Test) {
			assert.Loosely(t, TopSlowest(nil, 5), should.BeEmpty)
			assert.Loosely(t, ByMnemonic(nil), should.BeEmpty)
			assert.Loosely(t, Summarize(nil).TotalActions, should.BeZero)
		})
	})
}

func TestCachePerformance(t *testing.T) {
	t.Parallel()

	cacheHit := func(target string, bytes int64, fetch time.Duration) *spawnpb.SpawnExec {
		return &spawnpb.SpawnExec{
			Mnemonic:    "Cc",
			TargetLabel: target,
			Runner:      "remote cache hit",
			CacheHit:    true,
			ActualOutputs: []*spawnpb.File{
				{Path: "out", Digest: &spawnpb.Digest{Hash: "h", SizeBytes: bytes}},
			},
			Metrics: &spawnpb.SpawnMetrics{FetchTime: durationpb.New(fetch)},
		}
	}

	ftt.Run(`Cache performance`, t, func(t *ftt.Test) {
		spawns := []*spawnpb.SpawnExec{
			cacheHit("//a", 2_000_000, time.Second),
			cacheHit("//b", 2_000_000, time.Second),
			spawn("Cc", "//c", time.Second, false), // not a cache hit, ignored
		}

		t.Run(`sums bytes and fetch time over remote cache hits`, func(t *ftt.Test) {
			st := CachePerformance(spawns)
			assert.Loosely(t, st.Hits, should.Equal(2))
			assert.Loosely(t, st.BytesDownloaded, should.Equal(4_000_000))
			assert.Loosely(t, st.FetchTime, should.Equal(2*time.Second))
			assert.Loosely(t, st.RateKnown, should.BeTrue)
			assert.Loosely(t, st.RateMBps, should.AlmostEqual(2.0))
		})

		t.Run(`is idempotent`, func(t *ftt.Test) {
			assert.Loosely(t, CachePerformance(spawns), should.Match(CachePerformance(spawns)))
		})

		t.Run(`reports the rate as unknown below the fetch-time floor`, func(t *ftt.Test) {
			st := CachePerformance([]*spawnpb.SpawnExec{cacheHit("//a", 1_000_000, time.Microsecond)})
			assert.Loosely(t, st.Hits, should.Equal(1))
			assert.Loosely(t, st.RateKnown, should.BeFalse)
			assert.Loosely(t, st.RateMBps, should.BeZero)
		})

		t.Run(`outputs without digests contribute nothing`, func(t *ftt.Test) {
			hit := cacheHit("//a", 0, time.Second)
			hit.ActualOutputs[0].Digest = nil
			st := CachePerformance([]*spawnpb.SpawnExec{hit})
			assert.Loosely(t, st.BytesDownloaded, should.BeZero)
		})
	})
}

func TestPhaseReports(t *testing.T) {
	t.Parallel()

	executed := func(target string, total, queue, execution time.Duration) *spawnpb.SpawnExec {
		return &spawnpb.SpawnExec{
			Mnemonic:    "Cc",
			TargetLabel: target,
			Metrics: &spawnpb.SpawnMetrics{
				TotalTime:         durationpb.New(total),
				QueueTime:         durationpb.New(queue),
				ExecutionWallTime: durationpb.New(execution),
			},
		}
	}

	ftt.Run(`Phase reports`, t, func(t *ftt.Test) {
		spawns := []*spawnpb.SpawnExec{
			executed("//a", 4*time.Second, time.Second, 3*time.Second),
			executed("//b", 2*time.Second, 500*time.Millisecond, 2*time.Second),
			spawn("Cc", "//hit", 10*time.Second, true),
		}

		t.Run(`PhaseTimings excludes cache hits and computes overhead`, func(t *ftt.Test) {
			rows := PhaseTimings(spawns, 10)
			assert.Loosely(t, rows, should.HaveLength(2))
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//a"))
			assert.Loosely(t, rows[0].OverheadPct, should.AlmostEqual(25.0))
			assert.Loosely(t, rows[1].OverheadPct, should.BeZero)
		})

		t.Run(`overhead is zero when the total is zero`, func(t *ftt.Test) {
			rows := PhaseTimings([]*spawnpb.SpawnExec{executed("//z", 0, 0, 0)}, 1)
			assert.Loosely(t, rows[0].OverheadPct, should.BeZero)
		})

		t.Run(`AggregatePhases sums phases and shares`, func(t *ftt.Test) {
			agg := AggregatePhases(spawns)
			assert.Loosely(t, agg.ExecutedActions, should.Equal(2))
			assert.Loosely(t, agg.Total, should.Equal(6*time.Second))
			assert.Loosely(t, agg.Phases[0].Name, should.Equal("Queue"))
			assert.Loosely(t, agg.Phases[0].Time, should.Equal(1500*time.Millisecond))
			assert.Loosely(t, agg.Phases[0].Pct, should.AlmostEqual(25.0))
			assert.Loosely(t, agg.Phases[3].Name, should.Equal("Execution"))
			assert.Loosely(t, agg.Phases[3].Time, should.Equal(5*time.Second))
		})

		t.Run(`AggregatePhases with only cache hits reports nothing`, func(t *ftt.Test) {
			agg := AggregatePhases([]*spawnpb.SpawnExec{spawn("Cc", "//hit", time.Second, true)})
			assert.Loosely(t, agg.ExecutedActions, should.BeZero)
			assert.Loosely(t, agg.Total, should.BeZero)
		})

		t.Run(`QueueTimes ranks executed actions by queue duration`, func(t *ftt.Test) {
			rows := QueueTimes(spawns, 1)
			assert.Loosely(t, rows, should.HaveLength(1))
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//a"))
			assert.Loosely(t, rows[0].Queue, should.Equal(time.Second))
		})
	})
}

func TestSizeReports(t *testing.T) {
	t.Parallel()

	ftt.Run(`Size reports`, t, func(t *ftt.Test) {
		withInput := func(target string, bytes, files int64) *spawnpb.SpawnExec {
			return &spawnpb.SpawnExec{
				TargetLabel: target,
				Metrics:     &spawnpb.SpawnMetrics{InputBytes: bytes, InputFiles: files},
			}
		}

		t.Run(`InputSizes excludes zero-size actions and ranks the rest`, func(t *ftt.Test) {
			rows := InputSizes([]*spawnpb.SpawnExec{
				withInput("//small", 10, 1),
				withInput("//none", 0, 0),
				withInput("//big", 1000, 5),
			}, 10)
			assert.Loosely(t, rows, should.HaveLength(2))
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//big"))
			assert.Loosely(t, rows[0].InputFiles, should.Equal(5))
			assert.Loosely(t, rows[1].TargetLabel, should.Equal("//small"))
		})

		t.Run(`OutputSizes sums digests and excludes digestless actions`, func(t *ftt.Test) {
			withOutputs := func(target string, sizes ...int64) *spawnpb.SpawnExec {
				s := &spawnpb.SpawnExec{TargetLabel: target}
				for _, size := range sizes {
					var d *spawnpb.Digest
					if size > 0 {
						d = &spawnpb.Digest{Hash: "h", SizeBytes: size}
					}
					s.ActualOutputs = append(s.ActualOutputs, &spawnpb.File{Path: "out", Digest: d})
				}
				return s
			}
			rows := OutputSizes([]*spawnpb.SpawnExec{
				withOutputs("//a", 100, 200),
				withOutputs("//dir", 0), // directory output, no digest
				withOutputs("//b", 50),
			}, 10)
			assert.Loosely(t, rows, should.HaveLength(2))
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//a"))
			assert.Loosely(t, rows[0].OutputBytes, should.Equal(300))
			assert.Loosely(t, rows[0].OutputFiles, should.Equal(2))
		})
	})
}

func TestMemoryUsage(t *testing.T) {
	t.Parallel()

	withMemory := func(target string, estimate, limit int64) *spawnpb.SpawnExec {
		return &spawnpb.SpawnExec{
			TargetLabel: target,
			Metrics:     &spawnpb.SpawnMetrics{MemoryEstimateBytes: estimate, MemoryBytesLimit: limit},
		}
	}

	ftt.Run(`Memory usage`, t, func(t *ftt.Test) {
		t.Run(`excludes unlimited actions regardless of estimate`, func(t *ftt.Test) {
			rows := MemoryUsage([]*spawnpb.SpawnExec{
				withMemory("//unlimited", 1<<40, 0),
				withMemory("//half", 50, 100),
			}, 10)
			assert.Loosely(t, rows, should.HaveLength(1))
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//half"))
			assert.Loosely(t, rows[0].Ratio, should.AlmostEqual(0.5))
		})

		t.Run(`ranks by ratio descending`, func(t *ftt.Test) {
			rows := MemoryUsage([]*spawnpb.SpawnExec{
				withMemory("//low", 10, 100),
				withMemory("//high", 90, 100),
			}, 1)
			assert.Loosely(t, rows, should.HaveLength(1))
			assert.Loosely(t, rows[0].TargetLabel, should.Equal("//high"))
		})

		t.Run(`records without metrics are excluded`, func(t *ftt.Test) {
			rows := MemoryUsage([]*spawnpb.SpawnExec{{TargetLabel: "//bare"}}, 10)
			assert.Loosely(t, rows, should.BeEmpty)
		})
	})
}

func TestExecutionComparison(t *testing.T) {
	t.Parallel()

	run := func(mnemonic, runner string, wall time.Duration, cacheHit bool) *spawnpb.SpawnExec {
		return &spawnpb.SpawnExec{
			Mnemonic: mnemonic,
			Runner:   runner,
			CacheHit: cacheHit,
			Metrics:  &spawnpb.SpawnMetrics{ExecutionWallTime: durationpb.New(wall)},
		}
	}

	ftt.Run(`Execution comparison`, t, func(t *ftt.Test) {
		t.Run(`compares mnemonics with both sides`, func(t *ftt.Test) {
			rows := ExecutionComparison([]*spawnpb.SpawnExec{
				run("Cc", "remote", 4*time.Second, false),
				run("Cc", "remote", 2*time.Second, false),
				run("Cc", "linux-sandbox", time.Second, false),
			})
			assert.Loosely(t, rows, should.HaveLength(1))
			assert.Loosely(t, rows[0].Mnemonic, should.Equal("Cc"))
			assert.Loosely(t, rows[0].RemoteCount, should.Equal(2))
			assert.Loosely(t, rows[0].RemoteAvg, should.Equal(3*time.Second))
			assert.Loosely(t, rows[0].LocalCount, should.Equal(1))
			assert.Loosely(t, rows[0].Ratio, should.AlmostEqual(3.0))
			assert.Loosely(t, rows[0].Verdict, should.Equal("3.0x slower"))
		})

		t.Run(`reports faster remotes as a reciprocal`, func(t *ftt.Test) {
			rows := ExecutionComparison([]*spawnpb.SpawnExec{
				run("Cc", "remote", time.Second, false),
				run("Cc", "local", 2*time.Second, false),
			})
			assert.Loosely(t, rows[0].Verdict, should.Equal("2.0x faster"))
		})

		t.Run(`a mnemonic with only remote records never appears`, func(t *ftt.Test) {
			rows := ExecutionComparison([]*spawnpb.SpawnExec{
				run("Cc", "remote", time.Second, false),
				run("Cc", "remote", 2*time.Second, false),
			})
			assert.Loosely(t, rows, should.BeEmpty)
		})

		t.Run(`cache hits and unmeasured records are excluded`, func(t *ftt.Test) {
			unmeasured := &spawnpb.SpawnExec{Mnemonic: "Cc", Runner: "linux-sandbox", Metrics: &spawnpb.SpawnMetrics{}}
			rows := ExecutionComparison([]*spawnpb.SpawnExec{
				run("Cc", "remote", time.Second, false),
				run("Cc", "linux-sandbox", time.Second, true), // cache hit
				unmeasured,
			})
			assert.Loosely(t, rows, should.BeEmpty)
		})

		t.Run(`runners matching neither side are excluded from both`, func(t *ftt.Test) {
			rows := ExecutionComparison([]*spawnpb.SpawnExec{
				run("Cc", "remote", time.Second, false),
				run("Cc", "worker", time.Second, false),
			})
			assert.Loosely(t, rows, should.BeEmpty)
		})

		t.Run(`N/A when the local average is zero`, func(t *ftt.Test) {
			rows := ExecutionComparison([]*spawnpb.SpawnExec{
				run("Cc", "remote", time.Second, false),
				run("Cc", "local", 0, false),
			})
			assert.Loosely(t, rows, should.HaveLength(1))
			assert.Loosely(t, rows[0].Verdict, should.Equal("N/A"))
			assert.Loosely(t, rows[0].Ratio, should.BeZero)
		})

		t.Run(`rows are sorted by mnemonic`, func(t *ftt.Test) {
			rows := ExecutionComparison([]*spawnpb.SpawnExec{
				run("Link", "remote", time.Second, false),
				run("Link", "local", time.Second, false),
				run("Cc", "remote", time.Second, false),
				run("Cc", "local", time.Second, false),
			})
			assert.Loosely(t, rows, should.HaveLength(2))
			assert.Loosely(t, rows[0].Mnemonic, should.Equal("Cc"))
			assert.Loosely(t, rows[1].Mnemonic, should.Equal("Link"))
		})
	})
}

func TestRetriesAndFailures(t *testing.T) {
	t.Parallel()

	ftt.Run(`Retries and failures`, t, func(t *ftt.Test) {
		failed := &spawnpb.SpawnExec{
			TargetLabel: "//broken",
			Status:      "NON_ZERO_EXIT",
			ExitCode:    1,
		}
		retried := &spawnpb.SpawnExec{
			TargetLabel: "//flaky",
			Metrics:     &spawnpb.SpawnMetrics{RetryTime: durationpb.New(3 * time.Second)},
		}
		fine := spawn("Cc", "//ok", time.Second, false)

		rows := RetriesAndFailures([]*spawnpb.SpawnExec{failed, fine, retried})
		assert.Loosely(t, rows, should.HaveLength(2))
		assert.Loosely(t, rows[0].TargetLabel, should.Equal("//broken"))
		assert.Loosely(t, rows[0].ExitCode, should.Equal(1))
		assert.Loosely(t, rows[1].TargetLabel, should.Equal("//flaky"))
		assert.Loosely(t, rows[1].RetryTime, should.Equal(3*time.Second))
	})
}

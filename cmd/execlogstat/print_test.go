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
	"bytes"
	"testing"
	"time"

	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"github.com/avesta-b/execlogstat/internal/report"
)

func TestPrintReports(t *testing.T) {
	t.Parallel()

	ftt.Run(`Rendering`, t, func(t *ftt.Test) {
		buf := &bytes.Buffer{}

		t.Run(`top slowest`, func(t *ftt.Test) {
			printTopSlowest(buf, []report.SlowestAction{
				{Mnemonic: "Link", TargetLabel: "//c", Total: 3 * time.Second},
			}, 1)
			out := buf.String()
			assert.Loosely(t, out, should.ContainSubstring("Top 1 Slowest Actions"))
			assert.Loosely(t, out, should.ContainSubstring("3.000s"))
			assert.Loosely(t, out, should.ContainSubstring("//c"))
		})

		t.Run(`cache performance with a known rate`, func(t *ftt.Test) {
			printCachePerformance(buf, report.CacheStats{
				Hits:            2,
				BytesDownloaded: 4_000_000,
				FetchTime:       2 * time.Second,
				RateMBps:        2,
				RateKnown:       true,
			})
			out := buf.String()
			assert.Loosely(t, out, should.ContainSubstring("Remote Cache Hits Count: 2"))
			assert.Loosely(t, out, should.ContainSubstring("4.00 MB"))
			assert.Loosely(t, out, should.ContainSubstring("2.00 MB/s"))
		})

		t.Run(`cache performance with a negligible fetch time`, func(t *ftt.Test) {
			printCachePerformance(buf, report.CacheStats{Hits: 1})
			assert.Loosely(t, buf.String(), should.ContainSubstring("N/A (total fetch time is negligible)"))
		})

		t.Run(`empty report sections say so`, func(t *ftt.Test) {
			printCachePerformance(buf, report.CacheStats{})
			printExecutionComparison(buf, nil)
			out := buf.String()
			assert.Loosely(t, out, should.ContainSubstring("No remote cache hits found"))
			assert.Loosely(t, out, should.ContainSubstring("No mnemonics found with both remote and local executions"))
		})
	})
}

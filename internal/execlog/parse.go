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

// Package execlog loads a Bazel execution log and reconstructs it into a
// flat collection of SpawnExec records, auto-detecting which of the two log
// encodings the file uses.
package execlog

import (
	"context"
	"os"

	"github.com/klauspost/compress/zstd"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/avesta-b/execlogstat/internal/spawnpb"
)

// Shared zstd decoder. Only DecodeAll is used, which is safe for concurrent
// callers.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err) // this is impossible
	}
}

// ParseFile reads path and parses it with Parse.
func ParseFile(ctx context.Context, path string) ([]*spawnpb.SpawnExec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Fmt("reading execution log: %w", err)
	}
	return Parse(ctx, raw)
}

// Parse auto-detects the encoding of raw and returns the spawn records.
//
// The compact format (zstd-compressed ExecLogEntry stream) is attempted
// first since it is the canonical modern format; the two encodings are not
// self-identifying, so "every frame decodes" is the acceptance test. If
// either decompression or the compact parse fails, raw is parsed as the
// verbose format, and failures there are fatal. Detection happens exactly
// once per call, never mid-stream.
func Parse(ctx context.Context, raw []byte) ([]*spawnpb.SpawnExec, error) {
	if decompressed, err := zstdDecoder.DecodeAll(raw, nil); err == nil {
		spawns, err := parseCompact(ctx, decompressed)
		if err == nil {
			logging.Debugf(ctx, "detected zstd-compressed compact execution log")
			return spawns, nil
		}
		logging.Debugf(ctx, "decompressed but not a compact execution log (%s), trying verbose", err)
	}
	return parseVerbose(raw)
}

// parseVerbose decodes a flat sequence of length-delimited SpawnExec frames.
// Reaching the end of the buffer exactly is success; an incomplete trailing
// frame is an error.
func parseVerbose(raw []byte) ([]*spawnpb.SpawnExec, error) {
	var spawns []*spawnpb.SpawnExec
	off := 0
	for off < len(raw) {
		s, next, err := spawnpb.ConsumeSpawnExec(raw, off)
		if err != nil {
			return nil, errors.Fmt("verbose execution log: %w", err)
		}
		spawns = append(spawns, s)
		off = next
	}
	return spawns, nil
}

// storedEntry is a dictionary slot: an interned File or Directory. Exactly
// one of the fields is set.
type storedEntry struct {
	file *spawnpb.File
	dir  *spawnpb.Directory
}

// parseCompact decodes the ExecLogEntry stream and reconstructs one
// SpawnExec per Spawn envelope, in stream order.
//
// The dictionary of interned entries is local to this call: entries always
// precede the spawns that reference them (references only point backward),
// and nothing outlives the pass. Id 0 marks a value the producer chose not
// to intern; such entries are never stored and never resolvable.
func parseCompact(ctx context.Context, content []byte) ([]*spawnpb.SpawnExec, error) {
	dict := map[uint32]storedEntry{}
	var spawns []*spawnpb.SpawnExec
	off := 0
	for off < len(content) {
		e, next, err := spawnpb.ConsumeExecLogEntry(content, off)
		if err != nil {
			return nil, errors.Fmt("compact execution log: %w", err)
		}
		switch {
		case e.Spawn != nil:
			spawns = append(spawns, reconstruct(ctx, e.Spawn, dict))
		case e.File != nil && e.ID != 0:
			dict[e.ID] = storedEntry{file: e.File}
		case e.Directory != nil && e.ID != 0:
			dict[e.ID] = storedEntry{dir: e.Directory}
		}
		off = next
	}
	return spawns, nil
}

// reconstruct expands a compact Spawn into a SpawnExec, resolving output
// references against the dictionary.
//
// A File hit keeps its digest; a Directory hit becomes a File-shaped entry
// with no digest, matching how the verbose format represents directories.
// References missing from the dictionary are dropped without error, since
// entries for outputs outside the analysis scope may be pruned upstream.
// Declared inputs and listed outputs are not reconstructed; no report reads
// them.
func reconstruct(ctx context.Context, s *spawnpb.CompactSpawn, dict map[uint32]storedEntry) *spawnpb.SpawnExec {
	out := &spawnpb.SpawnExec{
		CommandArgs:          s.Args,
		EnvironmentVariables: s.EnvVars,
		Platform:             s.Platform,
		Remotable:            s.Remotable,
		Cacheable:            s.Cacheable,
		TimeoutMillis:        s.TimeoutMillis,
		Mnemonic:             s.Mnemonic,
		Runner:               s.Runner,
		CacheHit:             s.CacheHit,
		Status:               s.Status,
		ExitCode:             s.ExitCode,
		RemoteCacheable:      s.RemoteCacheable,
		TargetLabel:          s.TargetLabel,
		Digest:               s.Digest,
		Metrics:              s.Metrics,
	}
	for _, ref := range s.Outputs {
		if ref.OutputID == 0 {
			// Not an interned reference (or not a reference kind we model).
			continue
		}
		ent, ok := dict[ref.OutputID]
		if !ok {
			logging.Debugf(ctx, "spawn %q references unknown output id %d, dropping", s.TargetLabel, ref.OutputID)
			continue
		}
		switch {
		case ent.file != nil:
			out.ActualOutputs = append(out.ActualOutputs, &spawnpb.File{
				Path:   ent.file.Path,
				Digest: ent.file.Digest,
			})
		case ent.dir != nil:
			out.ActualOutputs = append(out.ActualOutputs, &spawnpb.File{
				Path: ent.dir.Path,
			})
		}
	}
	return out
}

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

// Package spawnpb holds in-memory representations of the messages in Bazel's
// execution log, together with a hand-rolled protobuf codec for both log
// encodings.
//
// Bazel writes the log in one of two shapes: the verbose format, a flat
// sequence of length-delimited SpawnExec messages, and the compact format,
// a zstd-compressed sequence of length-delimited ExecLogEntry envelopes in
// which file and directory metadata is interned once and referenced by id.
// The field numbers below follow Bazel's spawn.proto, so logs produced by a
// stock Bazel decode without translation.
//
// The types here are plain structs rather than protoc output: the schema is
// three messages deep, read-only, and versioned by Bazel rather than by this
// repo, so a generated-code build step buys nothing. Optional durations are
// kept as *durationpb.Duration so that "not measured" stays distinguishable
// from zero; AsDuration is nil-safe and gives the absent-is-zero reading the
// reports use for ranking.
package spawnpb

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// Digest identifies the content of a file.
type Digest struct {
	Hash             string
	SizeBytes        int64
	HashFunctionName string
}

// GetSizeBytes returns the digest size, or 0 for an absent digest.
func (d *Digest) GetSizeBytes() int64 {
	if d == nil {
		return 0
	}
	return d.SizeBytes
}

// File is a single input or output of a spawn.
//
// A directory surfaced through compact-log reconstruction also takes this
// shape, with Digest left nil: directory content is not individually hashed
// in the verbose representation.
type File struct {
	Path              string
	Digest            *Digest
	IsTool            bool
	SymlinkTargetPath string
}

// GetDigest returns the file digest, which may be nil.
func (f *File) GetDigest() *Digest {
	if f == nil {
		return nil
	}
	return f.Digest
}

// EnvironmentVariable is one entry of a spawn's environment.
type EnvironmentVariable struct {
	Name  string
	Value string
}

// PlatformProperty is one entry of a spawn's execution platform.
type PlatformProperty struct {
	Name  string
	Value string
}

// Platform describes the execution platform of a spawn.
type Platform struct {
	Properties []*PlatformProperty
}

// SpawnMetrics is the timing and resource envelope of one spawn.
//
// Every duration is independently optional: nil means the phase was not
// measured, which is not the same as a measured zero.
type SpawnMetrics struct {
	TotalTime          *durationpb.Duration
	ParseTime          *durationpb.Duration
	NetworkTime        *durationpb.Duration
	FetchTime          *durationpb.Duration
	QueueTime          *durationpb.Duration
	SetupTime          *durationpb.Duration
	UploadTime         *durationpb.Duration
	ExecutionWallTime  *durationpb.Duration
	ProcessOutputsTime *durationpb.Duration
	RetryTime          *durationpb.Duration

	InputBytes          int64
	InputFiles          int64
	MemoryEstimateBytes int64
	// MemoryBytesLimit is 0 when no limit was imposed; the estimate/limit
	// ratio is undefined in that case.
	MemoryBytesLimit int64
}

func (m *SpawnMetrics) GetTotalTime() *durationpb.Duration {
	if m == nil {
		return nil
	}
	return m.TotalTime
}

func (m *SpawnMetrics) GetFetchTime() *durationpb.Duration {
	if m == nil {
		return nil
	}
	return m.FetchTime
}

func (m *SpawnMetrics) GetQueueTime() *durationpb.Duration {
	if m == nil {
		return nil
	}
	return m.QueueTime
}

func (m *SpawnMetrics) GetSetupTime() *durationpb.Duration {
	if m == nil {
		return nil
	}
	return m.SetupTime
}

func (m *SpawnMetrics) GetUploadTime() *durationpb.Duration {
	if m == nil {
		return nil
	}
	return m.UploadTime
}

func (m *SpawnMetrics) GetExecutionWallTime() *durationpb.Duration {
	if m == nil {
		return nil
	}
	return m.ExecutionWallTime
}

func (m *SpawnMetrics) GetRetryTime() *durationpb.Duration {
	if m == nil {
		return nil
	}
	return m.RetryTime
}

func (m *SpawnMetrics) GetInputBytes() int64 {
	if m == nil {
		return 0
	}
	return m.InputBytes
}

func (m *SpawnMetrics) GetInputFiles() int64 {
	if m == nil {
		return 0
	}
	return m.InputFiles
}

func (m *SpawnMetrics) GetMemoryEstimateBytes() int64 {
	if m == nil {
		return 0
	}
	return m.MemoryEstimateBytes
}

func (m *SpawnMetrics) GetMemoryBytesLimit() int64 {
	if m == nil {
		return 0
	}
	return m.MemoryBytesLimit
}

// SpawnExec is one executed or cache-served action.
//
// Mnemonic, Runner and TargetLabel are always present, possibly as the empty
// string. Metrics is nil only for degenerate log entries. An empty Status
// means success.
type SpawnExec struct {
	CommandArgs          []string
	EnvironmentVariables []*EnvironmentVariable
	Platform             *Platform
	Inputs               []*File
	ListedOutputs        []string
	Remotable            bool
	Cacheable            bool
	TimeoutMillis        int64
	Mnemonic             string
	ActualOutputs        []*File
	Runner               string
	CacheHit             bool
	Status               string
	ExitCode             int32
	RemoteCacheable      bool
	TargetLabel          string
	Digest               *Digest
	Metrics              *SpawnMetrics
}

// GetMetrics returns the spawn metrics, which may be nil.
func (s *SpawnExec) GetMetrics() *SpawnMetrics {
	if s == nil {
		return nil
	}
	return s.Metrics
}

// Directory is an interned output directory in the compact log.
//
// Only the path matters for analysis; member files are not tracked.
type Directory struct {
	Path string
}

// CompactOutput is one output reference of a compact Spawn.
//
// Only the interned-id arm of the oneof is modeled; references of other
// kinds decode to OutputID 0 and are dropped during reconstruction.
type CompactOutput struct {
	OutputID uint32
}

// CompactSpawn is the compact-log counterpart of SpawnExec. Its outputs are
// id references into the entry dictionary rather than inline File messages.
type CompactSpawn struct {
	Args            []string
	EnvVars         []*EnvironmentVariable
	Platform        *Platform
	TimeoutMillis   int64
	Remotable       bool
	Cacheable       bool
	RemoteCacheable bool
	Outputs         []*CompactOutput
	ExitCode        int32
	Status          string
	Runner          string
	CacheHit        bool
	Digest          *Digest
	Metrics         *SpawnMetrics
	Mnemonic        string
	TargetLabel     string
}

// ExecLogEntry is one envelope of the compact log: an id plus exactly one
// payload. Entries whose payload is not modeled here (invocations, symlinks,
// input sets, ...) decode with all payload fields nil and are skipped by the
// reconstructor.
type ExecLogEntry struct {
	ID uint32

	File      *File
	Directory *Directory
	Spawn     *CompactSpawn
}

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

package spawnpb

import (
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
)

// The encoder is the write half of the codec. The analyzer itself never
// writes logs; this exists so tests can build wire-exact fixtures and check
// the verbose path round-trips losslessly. Fields are emitted in ascending
// field-number order and default values are omitted, matching canonical
// proto3 output.

// AppendSpawnExec appends s as a length-delimited frame.
func AppendSpawnExec(dst []byte, s *SpawnExec) []byte {
	return protowire.AppendBytes(dst, marshalSpawnExec(nil, s))
}

// AppendExecLogEntry appends e as a length-delimited frame.
func AppendExecLogEntry(dst []byte, e *ExecLogEntry) []byte {
	return protowire.AppendBytes(dst, marshalExecLogEntry(nil, e))
}

func appendString(dst []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return dst
	}
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendString(dst, v)
}

func appendBool(dst []byte, num protowire.Number, v bool) []byte {
	if !v {
		return dst
	}
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, protowire.EncodeBool(v))
}

func appendInt64(dst []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return dst
	}
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, uint64(v))
}

func appendMessage(dst []byte, num protowire.Number, body []byte) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendBytes(dst, body)
}

func appendDuration(dst []byte, num protowire.Number, d *durationpb.Duration) []byte {
	if d == nil {
		return dst
	}
	body, err := proto.Marshal(d)
	if err != nil {
		panic(err) // durationpb cannot fail to marshal
	}
	return appendMessage(dst, num, body)
}

func marshalDigest(dst []byte, d *Digest) []byte {
	dst = appendString(dst, 1, d.Hash)
	dst = appendInt64(dst, 2, d.SizeBytes)
	dst = appendString(dst, 3, d.HashFunctionName)
	return dst
}

func marshalFile(dst []byte, f *File) []byte {
	dst = appendString(dst, 1, f.Path)
	if f.Digest != nil {
		dst = appendMessage(dst, 2, marshalDigest(nil, f.Digest))
	}
	dst = appendBool(dst, 3, f.IsTool)
	dst = appendString(dst, 4, f.SymlinkTargetPath)
	return dst
}

func marshalEnvironmentVariable(dst []byte, ev *EnvironmentVariable) []byte {
	dst = appendString(dst, 1, ev.Name)
	dst = appendString(dst, 2, ev.Value)
	return dst
}

func marshalPlatform(dst []byte, p *Platform) []byte {
	for _, prop := range p.Properties {
		var body []byte
		body = appendString(body, 1, prop.Name)
		body = appendString(body, 2, prop.Value)
		dst = appendMessage(dst, 1, body)
	}
	return dst
}

func marshalSpawnMetrics(dst []byte, m *SpawnMetrics) []byte {
	dst = appendDuration(dst, 1, m.TotalTime)
	dst = appendDuration(dst, 2, m.ParseTime)
	dst = appendDuration(dst, 3, m.NetworkTime)
	dst = appendDuration(dst, 4, m.FetchTime)
	dst = appendDuration(dst, 5, m.QueueTime)
	dst = appendDuration(dst, 6, m.SetupTime)
	dst = appendDuration(dst, 7, m.UploadTime)
	dst = appendDuration(dst, 8, m.ExecutionWallTime)
	dst = appendDuration(dst, 9, m.ProcessOutputsTime)
	dst = appendDuration(dst, 10, m.RetryTime)
	dst = appendInt64(dst, 11, m.InputBytes)
	dst = appendInt64(dst, 12, m.InputFiles)
	dst = appendInt64(dst, 13, m.MemoryEstimateBytes)
	dst = appendInt64(dst, 18, m.MemoryBytesLimit)
	return dst
}

func marshalSpawnExec(dst []byte, s *SpawnExec) []byte {
	for _, arg := range s.CommandArgs {
		dst = appendMessage(dst, 1, []byte(arg))
	}
	for _, ev := range s.EnvironmentVariables {
		dst = appendMessage(dst, 2, marshalEnvironmentVariable(nil, ev))
	}
	if s.Platform != nil {
		dst = appendMessage(dst, 3, marshalPlatform(nil, s.Platform))
	}
	for _, f := range s.Inputs {
		dst = appendMessage(dst, 4, marshalFile(nil, f))
	}
	for _, out := range s.ListedOutputs {
		dst = appendMessage(dst, 5, []byte(out))
	}
	dst = appendBool(dst, 6, s.Remotable)
	dst = appendBool(dst, 7, s.Cacheable)
	dst = appendInt64(dst, 8, s.TimeoutMillis)
	dst = appendString(dst, 9, s.Mnemonic)
	for _, f := range s.ActualOutputs {
		dst = appendMessage(dst, 10, marshalFile(nil, f))
	}
	dst = appendString(dst, 11, s.Runner)
	dst = appendBool(dst, 12, s.CacheHit)
	dst = appendString(dst, 13, s.Status)
	dst = appendInt64(dst, 14, int64(s.ExitCode))
	dst = appendBool(dst, 15, s.RemoteCacheable)
	dst = appendString(dst, 16, s.TargetLabel)
	if s.Digest != nil {
		dst = appendMessage(dst, 17, marshalDigest(nil, s.Digest))
	}
	if s.Metrics != nil {
		dst = appendMessage(dst, 18, marshalSpawnMetrics(nil, s.Metrics))
	}
	return dst
}

func marshalCompactSpawn(dst []byte, s *CompactSpawn) []byte {
	for _, arg := range s.Args {
		dst = appendMessage(dst, 1, []byte(arg))
	}
	for _, ev := range s.EnvVars {
		dst = appendMessage(dst, 2, marshalEnvironmentVariable(nil, ev))
	}
	if s.Platform != nil {
		dst = appendMessage(dst, 3, marshalPlatform(nil, s.Platform))
	}
	dst = appendInt64(dst, 6, s.TimeoutMillis)
	dst = appendBool(dst, 7, s.Remotable)
	dst = appendBool(dst, 8, s.Cacheable)
	dst = appendBool(dst, 9, s.RemoteCacheable)
	for _, o := range s.Outputs {
		var body []byte
		if o.OutputID != 0 {
			body = protowire.AppendTag(body, 1, protowire.VarintType)
			body = protowire.AppendVarint(body, uint64(o.OutputID))
		}
		dst = appendMessage(dst, 10, body)
	}
	dst = appendInt64(dst, 11, int64(s.ExitCode))
	dst = appendString(dst, 12, s.Status)
	dst = appendString(dst, 13, s.Runner)
	dst = appendBool(dst, 14, s.CacheHit)
	if s.Digest != nil {
		dst = appendMessage(dst, 15, marshalDigest(nil, s.Digest))
	}
	if s.Metrics != nil {
		dst = appendMessage(dst, 16, marshalSpawnMetrics(nil, s.Metrics))
	}
	dst = appendString(dst, 17, s.Mnemonic)
	dst = appendString(dst, 18, s.TargetLabel)
	return dst
}

func marshalExecLogEntry(dst []byte, e *ExecLogEntry) []byte {
	dst = appendInt64(dst, 1, int64(e.ID))
	switch {
	case e.File != nil:
		dst = appendMessage(dst, 3, marshalFile(nil, e.File))
	case e.Directory != nil:
		dst = appendMessage(dst, 4, appendString(nil, 1, e.Directory.Path))
	case e.Spawn != nil:
		dst = appendMessage(dst, 5, marshalCompactSpawn(nil, e.Spawn))
	}
	return dst
}

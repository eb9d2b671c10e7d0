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

	"go.chromium.org/luci/common/errors"
)

// ConsumeSpawnExec decodes the length-delimited SpawnExec frame starting at
// buf[off] and returns the offset just past it. Errors carry the frame's
// byte offset. A caller reaching exactly len(buf) has consumed the whole
// log; anything short of that is a truncated frame and an error here.
func ConsumeSpawnExec(buf []byte, off int) (*SpawnExec, int, error) {
	body, next, err := consumeFrame(buf, off)
	if err != nil {
		return nil, 0, err
	}
	s, err := unmarshalSpawnExec(body)
	if err != nil {
		return nil, 0, errors.Fmt("frame at offset %d: %w", off, err)
	}
	return s, next, nil
}

// ConsumeExecLogEntry decodes the length-delimited ExecLogEntry frame
// starting at buf[off] and returns the offset just past it.
func ConsumeExecLogEntry(buf []byte, off int) (*ExecLogEntry, int, error) {
	body, next, err := consumeFrame(buf, off)
	if err != nil {
		return nil, 0, err
	}
	e, err := unmarshalExecLogEntry(body)
	if err != nil {
		return nil, 0, errors.Fmt("frame at offset %d: %w", off, err)
	}
	return e, next, nil
}

// consumeFrame reads the varint length prefix at buf[off] and returns the
// frame body along with the offset of the next frame. The only framing in
// the log is these self-describing prefixes; there is no trailing count or
// index to consult.
func consumeFrame(buf []byte, off int) ([]byte, int, error) {
	size, n := protowire.ConsumeVarint(buf[off:])
	if n < 0 {
		return nil, 0, errors.Fmt("frame at offset %d: reading length prefix: %w", off, protowire.ParseError(n))
	}
	start := off + n
	end := start + int(size)
	if int(size) < 0 || end > len(buf) {
		return nil, 0, errors.Fmt("frame at offset %d: truncated: need %d bytes, have %d", off, size, len(buf)-start)
	}
	return buf[start:end], end, nil
}

// Field-level consumers. Each enforces the expected wire type so that bytes
// in the wrong top-level encoding fail to decode instead of misparsing,
// which is what format auto-detection relies on.

func consumeBytes(b []byte, typ protowire.Type) ([]byte, []byte, error) {
	if typ != protowire.BytesType {
		return nil, nil, errors.Fmt("unexpected wire type %d for length-delimited field", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	return v, b[n:], nil
}

func consumeString(b []byte, typ protowire.Type) (string, []byte, error) {
	v, rest, err := consumeBytes(b, typ)
	return string(v), rest, err
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, []byte, error) {
	if typ != protowire.VarintType {
		return 0, nil, errors.Fmt("unexpected wire type %d for varint field", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	return v, b[n:], nil
}

func consumeBool(b []byte, typ protowire.Type) (bool, []byte, error) {
	v, rest, err := consumeVarint(b, typ)
	return protowire.DecodeBool(v), rest, err
}

func consumeDuration(b []byte, typ protowire.Type) (*durationpb.Duration, []byte, error) {
	v, rest, err := consumeBytes(b, typ)
	if err != nil {
		return nil, nil, err
	}
	d := new(durationpb.Duration)
	if err := proto.Unmarshal(v, d); err != nil {
		return nil, nil, err
	}
	return d, rest, nil
}

// skipField discards one field of any wire type. Unknown field numbers are
// skipped rather than rejected so newer Bazel logs still load.
func skipField(b []byte, num protowire.Number, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return b[n:], nil
}

func unmarshalDigest(b []byte) (*Digest, error) {
	d := &Digest{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			d.Hash, b, err = consumeString(b, typ)
		case 2:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			d.SizeBytes = int64(v)
		case 3:
			d.HashFunctionName, b, err = consumeString(b, typ)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("Digest field %d: %w", num, err)
		}
	}
	return d, nil
}

func unmarshalFile(b []byte) (*File, error) {
	f := &File{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			f.Path, b, err = consumeString(b, typ)
		case 2:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				f.Digest, err = unmarshalDigest(v)
			}
		case 3:
			f.IsTool, b, err = consumeBool(b, typ)
		case 4:
			f.SymlinkTargetPath, b, err = consumeString(b, typ)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("File field %d: %w", num, err)
		}
	}
	return f, nil
}

func unmarshalEnvironmentVariable(b []byte) (*EnvironmentVariable, error) {
	ev := &EnvironmentVariable{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			ev.Name, b, err = consumeString(b, typ)
		case 2:
			ev.Value, b, err = consumeString(b, typ)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("EnvironmentVariable field %d: %w", num, err)
		}
	}
	return ev, nil
}

func unmarshalPlatform(b []byte) (*Platform, error) {
	p := &Platform{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				var prop *PlatformProperty
				if prop, err = unmarshalPlatformProperty(v); err == nil {
					p.Properties = append(p.Properties, prop)
				}
			}
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("Platform field %d: %w", num, err)
		}
	}
	return p, nil
}

func unmarshalPlatformProperty(b []byte) (*PlatformProperty, error) {
	p := &PlatformProperty{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			p.Name, b, err = consumeString(b, typ)
		case 2:
			p.Value, b, err = consumeString(b, typ)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("Platform.Property field %d: %w", num, err)
		}
	}
	return p, nil
}

func unmarshalSpawnMetrics(b []byte) (*SpawnMetrics, error) {
	m := &SpawnMetrics{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			m.TotalTime, b, err = consumeDuration(b, typ)
		case 2:
			m.ParseTime, b, err = consumeDuration(b, typ)
		case 3:
			m.NetworkTime, b, err = consumeDuration(b, typ)
		case 4:
			m.FetchTime, b, err = consumeDuration(b, typ)
		case 5:
			m.QueueTime, b, err = consumeDuration(b, typ)
		case 6:
			m.SetupTime, b, err = consumeDuration(b, typ)
		case 7:
			m.UploadTime, b, err = consumeDuration(b, typ)
		case 8:
			m.ExecutionWallTime, b, err = consumeDuration(b, typ)
		case 9:
			m.ProcessOutputsTime, b, err = consumeDuration(b, typ)
		case 10:
			m.RetryTime, b, err = consumeDuration(b, typ)
		case 11:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			m.InputBytes = int64(v)
		case 12:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			m.InputFiles = int64(v)
		case 13:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			m.MemoryEstimateBytes = int64(v)
		case 18:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			m.MemoryBytesLimit = int64(v)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("SpawnMetrics field %d: %w", num, err)
		}
	}
	return m, nil
}

func unmarshalSpawnExec(b []byte) (*SpawnExec, error) {
	s := &SpawnExec{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			var v string
			v, b, err = consumeString(b, typ)
			s.CommandArgs = append(s.CommandArgs, v)
		case 2:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				var ev *EnvironmentVariable
				if ev, err = unmarshalEnvironmentVariable(v); err == nil {
					s.EnvironmentVariables = append(s.EnvironmentVariables, ev)
				}
			}
		case 3:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				s.Platform, err = unmarshalPlatform(v)
			}
		case 4:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				var f *File
				if f, err = unmarshalFile(v); err == nil {
					s.Inputs = append(s.Inputs, f)
				}
			}
		case 5:
			var v string
			v, b, err = consumeString(b, typ)
			s.ListedOutputs = append(s.ListedOutputs, v)
		case 6:
			s.Remotable, b, err = consumeBool(b, typ)
		case 7:
			s.Cacheable, b, err = consumeBool(b, typ)
		case 8:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			s.TimeoutMillis = int64(v)
		case 9:
			s.Mnemonic, b, err = consumeString(b, typ)
		case 10:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				var f *File
				if f, err = unmarshalFile(v); err == nil {
					s.ActualOutputs = append(s.ActualOutputs, f)
				}
			}
		case 11:
			s.Runner, b, err = consumeString(b, typ)
		case 12:
			s.CacheHit, b, err = consumeBool(b, typ)
		case 13:
			s.Status, b, err = consumeString(b, typ)
		case 14:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			s.ExitCode = int32(v)
		case 15:
			s.RemoteCacheable, b, err = consumeBool(b, typ)
		case 16:
			s.TargetLabel, b, err = consumeString(b, typ)
		case 17:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				s.Digest, err = unmarshalDigest(v)
			}
		case 18:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				s.Metrics, err = unmarshalSpawnMetrics(v)
			}
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("SpawnExec field %d: %w", num, err)
		}
	}
	return s, nil
}

func unmarshalDirectory(b []byte) (*Directory, error) {
	d := &Directory{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			d.Path, b, err = consumeString(b, typ)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("Directory field %d: %w", num, err)
		}
	}
	return d, nil
}

func unmarshalCompactOutput(b []byte) (*CompactOutput, error) {
	o := &CompactOutput{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			o.OutputID = uint32(v)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("Spawn.Output field %d: %w", num, err)
		}
	}
	return o, nil
}

func unmarshalCompactSpawn(b []byte) (*CompactSpawn, error) {
	s := &CompactSpawn{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			var v string
			v, b, err = consumeString(b, typ)
			s.Args = append(s.Args, v)
		case 2:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				var ev *EnvironmentVariable
				if ev, err = unmarshalEnvironmentVariable(v); err == nil {
					s.EnvVars = append(s.EnvVars, ev)
				}
			}
		case 3:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				s.Platform, err = unmarshalPlatform(v)
			}
		case 6:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			s.TimeoutMillis = int64(v)
		case 7:
			s.Remotable, b, err = consumeBool(b, typ)
		case 8:
			s.Cacheable, b, err = consumeBool(b, typ)
		case 9:
			s.RemoteCacheable, b, err = consumeBool(b, typ)
		case 10:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				var o *CompactOutput
				if o, err = unmarshalCompactOutput(v); err == nil {
					s.Outputs = append(s.Outputs, o)
				}
			}
		case 11:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			s.ExitCode = int32(v)
		case 12:
			s.Status, b, err = consumeString(b, typ)
		case 13:
			s.Runner, b, err = consumeString(b, typ)
		case 14:
			s.CacheHit, b, err = consumeBool(b, typ)
		case 15:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				s.Digest, err = unmarshalDigest(v)
			}
		case 16:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				s.Metrics, err = unmarshalSpawnMetrics(v)
			}
		case 17:
			s.Mnemonic, b, err = consumeString(b, typ)
		case 18:
			s.TargetLabel, b, err = consumeString(b, typ)
		default:
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("Spawn field %d: %w", num, err)
		}
	}
	return s, nil
}

func unmarshalExecLogEntry(b []byte) (*ExecLogEntry, error) {
	e := &ExecLogEntry{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			var v uint64
			v, b, err = consumeVarint(b, typ)
			e.ID = uint32(v)
		case 3:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				e.File, err = unmarshalFile(v)
			}
		case 4:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				e.Directory, err = unmarshalDirectory(v)
			}
		case 5:
			var v []byte
			if v, b, err = consumeBytes(b, typ); err == nil {
				e.Spawn, err = unmarshalCompactSpawn(v)
			}
		default:
			// Envelope payloads this analysis never needs (invocations,
			// symlinks, input sets) fall through here.
			b, err = skipField(b, num, typ)
		}
		if err != nil {
			return nil, errors.Fmt("ExecLogEntry field %d: %w", num, err)
		}
	}
	return e, nil
}

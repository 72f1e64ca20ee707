// Copyright 2020-2026 The zca Authors.
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

package zca

import (
	"go.zca.dev/zca/internal/trace"
)

// Sink is the write-forward byte sink (C3) a [Serializer] appends the
// archive to. Writes are append-only and monotonic: nothing already
// written is ever revisited, which is what makes position tracking during
// serialization cheap — a value's final position is known the instant it
// is written, never after the fact.
type Sink struct {
	buf   []byte
	align Profile
}

// NewSink returns an empty Sink governed by the given Profile.
func NewSink(p Profile) *Sink {
	return &Sink{align: p}
}

// Position returns the number of bytes written to the sink so far; this is
// the position a value written right now would occupy.
func (s *Sink) Position() int64 {
	return int64(len(s.buf))
}

// Write appends p to the sink, returning the position it was written at.
func (s *Sink) Write(p []byte) int64 {
	at := s.Position()
	s.buf = append(s.buf, p...)
	trace.Log(nil, "sink write", "%d:%d", at, len(p))
	return at
}

// PadTo writes zero bytes until the sink's position is a multiple of
// align, returning the new position. align must be a power of two.
func (s *Sink) PadTo(align int) int64 {
	if s.align.Align == AlignPacked {
		return s.Position()
	}
	pos := s.Position()
	pad := (int64(align) - pos%int64(align)) % int64(align)
	if pad == 0 {
		return pos
	}
	s.buf = append(s.buf, make([]byte, pad)...)
	trace.Log(nil, "sink pad", "%d+%d->%d", pos, pad, s.Position())
	return s.Position()
}

// Bytes returns the sink's contents. The returned slice aliases the sink's
// internal buffer and must not be mutated.
func (s *Sink) Bytes() []byte {
	return s.buf
}

// Finish returns the completed archive, verifying [I1]: the root value
// must end exactly at the end of the buffer, i.e. the sink's position at
// the time Finish is called must equal rootEnd.
func (s *Sink) Finish(rootEnd int64) ([]byte, error) {
	if s.Position() != rootEnd {
		return nil, &ValidationError{
			Position: s.Position(),
			Kind:     ErrOutOfBounds,
			Detail:   "root value does not end at the end of the buffer",
		}
	}
	return s.buf, nil
}

// Profile returns the Profile this sink was constructed with.
func (s *Sink) Profile() Profile { return s.align }

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
	"fmt"
	"unsafe"

	"github.com/google/uuid"

	"go.zca.dev/zca/internal/arena"
	"go.zca.dev/zca/internal/shared"
	"go.zca.dev/zca/internal/trace"
)

// Serializable is implemented by Go values with an archived mirror. Unlike
// a one-shot MarshalBinary, Serialize follows the two-phase serialize/
// resolve protocol (§4.6): children are written to the sink first
// (bottom-up, satisfying [I2]: no forward pointers), and Serialize returns
// only a Resolver, a closure that knows how to fill in the parent's
// archived header — including any relative pointers to those
// already-written children — once the parent's own position is known.
type Serializable interface {
	// ArchivedLayout reports the size and alignment of this value's
	// archived mirror, without writing anything.
	ArchivedLayout() (size, align int)
	// Serialize writes this value's owned subtrees (anything a pointer
	// inside the archived mirror will point to) to s, and returns a
	// Resolver that, given the position the archived header itself will
	// occupy, fills in that header's bytes.
	Serialize(s *Serializer) (Resolver, error)
}

// Resolver fills in the archived bytes of a value whose children have
// already been written, now that `at` (this value's own position in the
// sink) is known. out is exactly ArchivedLayout().size bytes long.
type Resolver interface {
	Resolve(at int64, out []byte) error
}

// ResolverFunc adapts a plain function to a Resolver.
type ResolverFunc func(at int64, out []byte) error

func (f ResolverFunc) Resolve(at int64, out []byte) error { return f(at, out) }

// Serializer drives the serialize/resolve protocol: it owns the output
// [Sink], a scratch [arena.Arena] for staging child resolvers (C4), the
// shared-pointer dedup [shared.Registry] (C5), and a [CycleGuard] rejecting
// re-entrant graphs (§9).
type Serializer struct {
	Sink    *Sink
	Scratch *arena.Arena
	Shared  shared.Registry
	Profile Profile

	// sessionID tags every trace.Log line this Serializer emits, so that
	// interleaved debug output from concurrent sessions (§5: sessions never
	// share state, but a process may run many at once) can be told apart.
	sessionID uuid.UUID

	dropScratch func()
	guard       CycleGuard
	depth       int
}

// NewSerializer returns a Serializer governed by the given Profile, ready
// to serialize a root value. Its scratch arena comes from [arena.Recycler],
// so callers should call [Serializer.Close] once the resulting archive has
// been fully resolved.
func NewSerializer(p Profile) *Serializer {
	scratch, drop := arena.Get()
	return &Serializer{
		Sink:        NewSink(p),
		Scratch:     scratch,
		Profile:     p,
		guard:       NewCycleGuard(),
		sessionID:   uuid.New(),
		dropScratch: drop,
	}
}

// SessionID identifies this Serializer instance in trace output.
func (s *Serializer) SessionID() uuid.UUID { return s.sessionID }

// Close returns this Serializer's scratch arena to [arena.Recycler]. Safe
// to call more than once; a no-op after the first call.
func (s *Serializer) Close() {
	if s.dropScratch != nil {
		s.dropScratch()
		s.dropScratch = nil
	}
}

// SerializeRoot serializes v as the archive's root value: it writes v's
// children, resolves v's own header at the final position, pads so the
// header ends exactly at the end of the buffer (satisfying [I1]), and
// returns the completed archive.
func SerializeRoot(p Profile, v Serializable) ([]byte, error) {
	s := NewSerializer(p)
	defer s.Close()
	size, align := v.ArchivedLayout()

	resolver, err := s.Serialize(v)
	if err != nil {
		return nil, err
	}

	s.Sink.PadTo(align)
	at := s.Sink.Position()
	out := make([]byte, size)
	if err := resolver.Resolve(at, out); err != nil {
		return nil, err
	}
	end := s.Sink.Write(out)
	_ = end

	return s.Sink.Finish(at + int64(size))
}

// Serialize recursively serializes v, enforcing the Profile's MaxDepth.
// Cycle rejection (§9) happens in [Serializer.EmplaceShared], not here.
func (s *Serializer) Serialize(v Serializable) (Resolver, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > s.Profile.maxDepth() {
		return nil, fmt.Errorf("zca: exceeded max serialize depth %d", s.Profile.maxDepth())
	}

	resolver, err := v.Serialize(s)
	if err != nil {
		return nil, err
	}
	trace.Log(nil, "serialize", "[%s] %T at depth %d", s.sessionID, v, s.depth)
	return resolver, nil
}

// Emplace serializes v's children, then immediately resolves and writes
// its archived header to the sink, returning the position it was written
// at. This is the common case for a value that is referenced by exactly
// one relative pointer (or is itself a tree leaf); values taking part in
// shared-pointer deduplication go through [Serializer.EmplaceShared]
// instead.
func (s *Serializer) Emplace(v Serializable) (int64, error) {
	size, align := v.ArchivedLayout()
	resolver, err := s.Serialize(v)
	if err != nil {
		return 0, err
	}

	s.Sink.PadTo(align)
	at := s.Sink.Position()
	out := make([]byte, size)
	if err := resolver.Resolve(at, out); err != nil {
		return 0, err
	}
	s.Sink.Write(out)
	return at, nil
}

// PointerTo returns a narrow relative pointer from `at` (the position the
// pointer field itself will occupy) to `target` (the already-written
// position of the referent).
func PointerTo[T any](at, target int64) (Ptr32[T], error) {
	delta, err := emplacePtr32(at, target)
	if err != nil {
		return Ptr32[T]{}, err
	}
	return Ptr32[T]{delta: delta}, nil
}

// WidePointerTo returns a wide relative pointer carrying a vtable
// selector, from `at` to `target`.
func WidePointerTo(at, target int64, sel Selector) (WidePtr, error) {
	return emplaceWidePtr(at, target, sel)
}

// EmplaceShared emplaces v at most once per identity: subsequent calls
// with the same identity (typically the address of the Go value v was
// derived from) return the position of the first emplacement instead of
// re-serializing, implementing the shared-pointer dedup registry (C5,
// [I5]). typeTag distinguishes archived types that might share a Go
// identity (e.g. a value accessible through two differently-typed
// interfaces) so that a later lookup can detect [ErrSharedPointerTypeConflict].
func (s *Serializer) EmplaceShared(identity unsafe.Pointer, typeTag uintptr, v Serializable) (int64, bool, error) {
	if pos, ok := s.Shared.Lookup(identity, typeTag); ok {
		return pos, true, nil
	}

	// A Shared value is the only place a Go-side identity is available to
	// this package, so it is the only place a true reference cycle can be
	// caught: a Box or plain struct field has no identity of its own to
	// re-enter on.
	leave, err := s.guard.Enter(identity)
	if err != nil {
		return 0, false, err
	}
	defer leave()

	pos, err := s.Emplace(v)
	if err != nil {
		return 0, false, err
	}
	s.Shared.Record(identity, typeTag, pos)
	return pos, false, nil
}

// CycleGuard rejects re-entrant serialization of a Go value that is
// already on the current call stack, turning what would otherwise be
// unbounded recursion (or, for an accidental cycle in application data, an
// infinite loop) into an [ErrCycleRejected] error (§9's indirection-table
// design note chose rejection over silent cycle-breaking so that a cyclic
// input is a caller bug to fix, not a shape the format has to represent).
type CycleGuard struct {
	active map[unsafe.Pointer]struct{}
}

// NewCycleGuard returns an empty CycleGuard.
func NewCycleGuard() CycleGuard {
	return CycleGuard{active: make(map[unsafe.Pointer]struct{})}
}

// Enter marks identity as in-progress, returning a leave func to call (via
// defer) once it is done, or an error if identity is already in progress.
func (g *CycleGuard) Enter(identity unsafe.Pointer) (leave func(), err error) {
	if _, ok := g.active[identity]; ok {
		return nil, ErrCycleRejected
	}
	g.active[identity] = struct{}{}
	return func() { delete(g.active, identity) }, nil
}

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
	"reflect"
	"unsafe"

	"go.zca.dev/zca/internal/unsafe2"
)

// Shared is an archived shared pointer (C7): like a [Box], but its
// referent may be pointed to by more than one Shared value across the same
// archive, all deduplicated through the same position by
// [Serializer.EmplaceShared] ([I5]). Accessing one is identical to
// accessing a Box; what differs is how it got there and how it is
// validated.
type Shared[T any] struct {
	ptr Ptr32[T]
}

// Get returns the shared referent.
func (s *Shared[T]) Get() *T { return s.ptr.Resolve() }

// IsNil reports whether s carries a null pointer.
func (s *Shared[T]) IsNil() bool { return s.ptr.IsNil() }

// SerializeShared is the [Serializable] for a Shared[T] field: identity
// distinguishes the Go value being archived (typically its address) and
// typeTag distinguishes types that might coincidentally share an identity.
// Repeated calls with the same (identity, typeTag) resolve to the same
// archived position without re-serializing the referent.
type SerializeShared[T Serializable] struct {
	Identity unsafe.Pointer
	TypeTag  uintptr
	Value    T
}

func (s SerializeShared[T]) ArchivedLayout() (size, align int) {
	return unsafe2.Layout[Shared[T]]()
}

func (s SerializeShared[T]) Serialize(ser *Serializer) (Resolver, error) {
	pos, _, err := ser.EmplaceShared(s.Identity, s.TypeTag, s.Value)
	if err != nil {
		return nil, err
	}
	return ResolverFunc(func(at int64, out []byte) error {
		ptr, err := PointerTo[T](at+int64(unsafe.Offsetof(Shared[T]{}.ptr)), pos)
		if err != nil {
			return err
		}
		v := Shared[T]{ptr: ptr}
		copy(out, unsafe2.Bytes(&v))
		return nil
	}), nil
}

// ValidateAt implements [Validatable] for Shared: the referent is
// validated at most once per position via [Validator.ValidateShared]
// regardless of how many Shared values across the archive point at it
// ([I5]); it is deliberately not pushed onto the subtree-overlap stack a
// [Box]'s referent would be, since two Shared pointers legitimately
// targeting the same position is not an [I4] overlap.
func (s *Shared[T]) ValidateAt(val *Validator, start int64) error {
	if s.ptr.IsNil() {
		return nil
	}
	size, _ := unsafe2.Layout[T]()
	ptrAt := start + int64(unsafe.Offsetof(Shared[T]{}.ptr))
	target := ptrAt + int64(s.ptr.delta)
	if target >= ptrAt {
		return &ValidationError{Position: target, Kind: ErrForwardPointer}
	}
	if _, err := val.bounds(target, int64(size)); err != nil {
		return err
	}

	typeTag := typeTagOf[T]()
	return val.ValidateShared(target, typeTag, func() error {
		ref := unsafe2.Cast[T](unsafe.SliceData(val.buf[target:]))
		if v, ok := any(ref).(Validatable); ok {
			return v.ValidateAt(val, target)
		}
		return nil
	})
}

// Weak is an archived weak reference (C7): it archives as null whenever
// its strong referent was unreachable at serialize time, the bounded
// encoding the format offers in place of representing a true reference
// cycle (§9).
type Weak[T any] struct {
	ptr Ptr32[T]
}

// Get returns the referent and true, or the zero value and false if the
// weak reference was null at archive time.
func (w *Weak[T]) Get() (*T, bool) {
	if w.ptr.IsNil() {
		return nil, false
	}
	return w.ptr.Resolve(), true
}

// SerializeWeak emplaces a weak reference: if Present is false (the
// referent was unreachable when the archive was built), the pointer
// archives as null. Otherwise it performs the upgrade §4.5 describes:
// Identity/TypeTag are looked up in the same [shared.Registry] a
// [SerializeShared] to the same source object would have registered into,
// so a Weak and a Shared that alias one Go value land on the same
// archived position rather than each getting their own copy ([P7]). A
// Weak has no referent of its own to serialize — it only ever points at
// something some [SerializeShared] elsewhere in the graph already owns.
type SerializeWeak[T Serializable] struct {
	Present  bool
	Identity unsafe.Pointer
	TypeTag  uintptr
}

func (w SerializeWeak[T]) ArchivedLayout() (size, align int) {
	return unsafe2.Layout[Weak[T]]()
}

func (w SerializeWeak[T]) Serialize(ser *Serializer) (Resolver, error) {
	if !w.Present {
		return ResolverFunc(func(at int64, out []byte) error { return nil }), nil
	}
	pos, ok := ser.Shared.Lookup(w.Identity, w.TypeTag)
	if !ok {
		// The strong referent was never registered through
		// [SerializeShared] under this identity — there is nothing
		// already-serialized to upgrade to, so this archives exactly like
		// an absent weak reference.
		return ResolverFunc(func(at int64, out []byte) error { return nil }), nil
	}
	return ResolverFunc(func(at int64, out []byte) error {
		ptr, err := PointerTo[T](at+int64(unsafe.Offsetof(Weak[T]{}.ptr)), pos)
		if err != nil {
			return err
		}
		v := Weak[T]{ptr: ptr}
		copy(out, unsafe2.Bytes(&v))
		return nil
	}), nil
}

// ValidateAt implements [Validatable] for Weak: a null pointer is always
// valid (that is precisely what a broken weak reference encodes as); a
// non-null one targets a referent some [Shared] pointer owns, so it is
// validated exactly like a Shared pointer, not as an owned subtree.
func (w *Weak[T]) ValidateAt(val *Validator, start int64) error {
	s := Shared[T]{ptr: w.ptr}
	return s.ValidateAt(val, start)
}

// typeTagOf returns a stable per-instantiation identity for T, used to
// detect [ErrSharedPointerTypeConflict] when two Shared[T] values with
// different T somehow collide on the same source identity. reflect's type
// descriptors are interned by the runtime, so the same T always yields the
// same address here.
func typeTagOf[T any]() uintptr {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return reflect.ValueOf(t).Pointer()
}

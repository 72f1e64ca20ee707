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
	"unsafe"

	"go.zca.dev/zca/internal/unsafe2"
)

// String is an archived string (C7). Strings of [ShortStringLen] bytes or
// fewer are stored inline, with no owned subtree and no relative pointer
// at all; longer strings store a length and a [Ptr32] to a UTF-8 byte
// range written elsewhere in the archive. Which representation is in play
// is recovered from the sign of the stored length, so reading a String
// never has to look at more than the bytes the archived mirror itself
// contains until it is known to be the long form.
type String struct {
	// taggedLen is the string's length with its sign bit repurposed as the
	// inline/pointer discriminant: negative means "inline, -taggedLen-1
	// bytes of payload are stored in payload", non-negative means
	// "taggedLen payload bytes live in the archive at the position ptr
	// resolves to".
	taggedLen int32
	payload   [ShortStringLen]byte
	ptr       Ptr32[byte]
}

// ShortStringLen is the largest string length stored inline by the short
// string optimization (§9): a String of this length or shorter allocates
// no owned subtree.
const ShortStringLen = 15

// NewShortString constructs an inline String. The caller must ensure
// len(s) <= ShortStringLen.
func NewShortString(s string) String {
	if len(s) > ShortStringLen {
		panic("zca: NewShortString with a string longer than ShortStringLen")
	}
	var v String
	v.taggedLen = -int32(len(s)) - 1
	copy(v.payload[:], s)
	return v
}

// isShort reports whether v uses the inline representation.
func (v String) isShort() bool { return v.taggedLen < 0 }

// Len returns the decoded length of this string.
func (v String) Len() int {
	if v.isShort() {
		return int(-v.taggedLen - 1)
	}
	return int(v.taggedLen)
}

// Get returns the decoded string. For the long representation this is a
// zero-copy view over archive bytes; the returned string aliases the
// archive buffer and must not outlive it.
func (v *String) Get() string {
	if v.isShort() {
		return string(v.payload[:v.Len()])
	}
	p := v.ptr.Resolve()
	return unsafe2.String(p, v.Len())
}

// SerializeLongString is the [Serializable] used by containers (sequence
// elements, map values, struct fields) that hold a String whose
// representation is decided at serialization time: it writes s's bytes if
// long, and returns a [Resolver] that patches in the pointer once this
// String's own header position is known.
type SerializeLongString struct {
	Value string
}

func (s SerializeLongString) ArchivedLayout() (size, align int) {
	return int(unsafe.Sizeof(String{})), int(unsafe.Alignof(String{}))
}

func (s SerializeLongString) Serialize(ser *Serializer) (Resolver, error) {
	if len(s.Value) <= ShortStringLen {
		v := NewShortString(s.Value)
		return ResolverFunc(func(at int64, out []byte) error {
			copy(out, unsafe2.Bytes(&v))
			return nil
		}), nil
	}

	bytesAt := ser.Sink.Write([]byte(s.Value))
	n := len(s.Value)
	return ResolverFunc(func(at int64, out []byte) error {
		ptr, err := PointerTo[byte](at+int64(unsafe.Offsetof(String{}.ptr)), bytesAt)
		if err != nil {
			return err
		}
		v := String{taggedLen: int32(n), ptr: ptr}
		copy(out, unsafe2.Bytes(&v))
		return nil
	}), nil
}

// Sequence is an archived variable-length homogeneous list (C7): a length
// and a pointer to a contiguous run of archived elements.
type Sequence[T any] struct {
	len int32
	ptr Ptr32[T]
}

// Len returns the number of elements.
func (v Sequence[T]) Len() int { return int(v.len) }

// Get returns a zero-copy view over the archived elements.
func (v *Sequence[T]) Get() []T {
	if v.len == 0 {
		return nil
	}
	return unsafe2.Slice(v.ptr.Resolve(), v.len)
}

// SerializeSequence is the [Serializable] for a Sequence over elements
// that are themselves [Serializable]; every element is serialized (its
// children written, satisfying [I2]) before any element is resolved, and
// the resolved element headers are then written back to back, before the
// Sequence header itself is resolved.
type SerializeSequence[T Serializable] struct {
	Elems []T
}

func (s SerializeSequence[T]) ArchivedLayout() (size, align int) {
	var v Sequence[byte]
	return int(unsafe.Sizeof(v)), int(unsafe.Alignof(v))
}

func (s SerializeSequence[T]) Serialize(ser *Serializer) (Resolver, error) {
	if len(s.Elems) == 0 {
		return ResolverFunc(func(at int64, out []byte) error { return nil }), nil
	}

	resolvers := make([]Resolver, len(s.Elems))
	for i := range s.Elems {
		r, err := ser.Serialize(s.Elems[i])
		if err != nil {
			return nil, err
		}
		resolvers[i] = r
	}

	elemSize, elemAlign := s.Elems[0].ArchivedLayout()
	ser.Sink.PadTo(elemAlign)
	first := ser.Sink.Position()
	for i, r := range resolvers {
		out := make([]byte, elemSize)
		if err := r.Resolve(first+int64(i*elemSize), out); err != nil {
			return nil, err
		}
		ser.Sink.Write(out)
	}

	n := len(s.Elems)
	return ResolverFunc(func(at int64, out []byte) error {
		ptr, err := PointerTo[byte](at+int64(unsafe.Offsetof(Sequence[byte]{}.ptr)), first)
		if err != nil {
			return err
		}
		v := Sequence[byte]{len: int32(n), ptr: ptr}
		copy(out, unsafe2.Bytes(&v))
		return nil
	}), nil
}

// Optional is an archived optional value: a presence flag and, when
// present, an inline copy of the value (unlike rkyv's niche-optimized
// option, this package always reserves the space, trading density for a
// simpler, allocation-free representation with no owned subtree).
type Optional[T any] struct {
	present Bool
	value   T
}

// Get returns the value and whether it was present.
func (v Optional[T]) Get() (T, bool) {
	return v.value, v.present.Get()
}

// PutOptional constructs a present Optional.
func PutOptional[T any](v T) Optional[T] {
	return Optional[T]{present: PutBool(true), value: v}
}

// NoneOptional constructs an absent Optional.
func NoneOptional[T any]() Optional[T] {
	return Optional[T]{present: PutBool(false)}
}

// Box is an archived owned pointer to a single value (C7): the only
// container whose referent is exactly one value, used to give a field
// indirection without the dedup semantics of a shared pointer.
type Box[T any] struct {
	ptr Ptr32[T]
}

// Get returns the boxed value.
func (v *Box[T]) Get() *T { return v.ptr.Resolve() }

// SerializeBox is the [Serializable] for a Box over a [Serializable]
// value: the value is emplaced first, and the Box itself is just a
// pointer to it.
type SerializeBox[T Serializable] struct {
	Value T
}

func (s SerializeBox[T]) ArchivedLayout() (size, align int) {
	var v Box[byte]
	return int(unsafe.Sizeof(v)), int(unsafe.Alignof(v))
}

func (s SerializeBox[T]) Serialize(ser *Serializer) (Resolver, error) {
	target, err := ser.Emplace(s.Value)
	if err != nil {
		return nil, err
	}
	return ResolverFunc(func(at int64, out []byte) error {
		ptr, err := PointerTo[byte](at, target)
		if err != nil {
			return err
		}
		v := Box[byte]{ptr: ptr}
		copy(out, unsafe2.Bytes(&v))
		return nil
	}), nil
}

// UnionStorage is implemented by a fixed-size array type declared for one
// specific tagged union: its element count and element type fix the byte
// size and alignment available to the union's largest variant, and
// NumVariants declares how many discriminant values that union defines.
// Generated code defines one of these per archived enum, the way a
// [VTable] is the per-trait-object analogue for [WidePtr] — except a
// union's variant set is closed at compile time, so there is no registry.
type UnionStorage interface {
	NumVariants() uint32
}

// Union is an archived tagged union (C7): a discriminant naming which of
// Storage's declared variants is present, followed by inline bytes sized
// and aligned for the union's largest variant. Storage carries no type
// information about the variants themselves — [PutUnion] and [UnionGet]
// reinterpret it as whichever Go type the caller already knows Tag
// selects, the same division of responsibility a WidePtr has with its
// looked-up VTable. Storage is plain inline bytes, not a pointer, so a
// Union has no owned subtree of its own and is memory-safe to copy.
type Union[Storage UnionStorage] struct {
	Tag     uint32
	Payload Storage
}

// GetTag returns the union's discriminant.
func (u Union[Storage]) GetTag() uint32 { return u.Tag }

// PutUnion constructs a Union selecting tag, with value written into the
// inline storage. The caller must ensure V fits within Storage; this is a
// property of the generated Storage type for a given union, not something
// PutUnion can check generically.
func PutUnion[Storage UnionStorage, V any](tag uint32, value V) Union[Storage] {
	var u Union[Storage]
	if int(unsafe.Sizeof(value)) > int(unsafe.Sizeof(u.Payload)) {
		panic("zca: PutUnion value larger than Storage")
	}
	u.Tag = tag
	*unsafe2.Cast[V](&u.Payload) = value
	return u
}

// UnionGet reinterprets u's inline storage as V, the type the caller knows
// corresponds to u.Tag. Calling this with a V that does not match the tag
// that was actually written is the caller's bug, not something Union can
// detect — exactly as dereferencing a WidePtr through the wrong VTable
// would be.
func UnionGet[Storage UnionStorage, V any](u *Union[Storage]) *V {
	return unsafe2.Cast[V](&u.Payload)
}

// validateUnionTag checks tag against the number of declared variants,
// returning [ErrInvalidTag] if it names none of them.
func validateUnionTag(tag, numVariants uint32) error {
	if tag >= numVariants {
		return ErrInvalidTag
	}
	return nil
}

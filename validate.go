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
	"sort"
	"unicode/utf8"
	"unsafe"

	"go.zca.dev/zca/internal/trace"
	"go.zca.dev/zca/internal/unsafe2"
)

// Validatable is implemented by archived types that need more than a
// bounds and alignment check against their own header: anything holding a
// relative pointer, since validating a pointer means recursively
// validating the subtree it owns (C9).
type Validatable interface {
	// ValidateAt checks this value, which occupies [start, start+size) of
	// the buffer being validated, recursing into anything it points to.
	ValidateAt(v *Validator, start int64) error
}

// Validator walks an archive buffer checking every invariant a [Serializer]
// is supposed to have upheld, before any [Access] call is allowed to trust
// it (C9, §7). It never trusts the bytes it is validating: every pointer
// is range-checked before being followed, and following one pushes a new
// entry onto the subtree-range stack used to catch [I4] violations.
type Validator struct {
	buf     []byte
	profile Profile

	// closed holds the byte ranges of every subtree validated so far,
	// kept sorted by start so overlap checks are a binary search instead
	// of an O(n) scan. A legally archived DAG's subtrees are either
	// disjoint or identical (the latter only for deduplicated shared
	// pointers, which do not go through PushSubtree at all — see
	// [Validator.ValidateShared]), so any overlap found here is real.
	closed []rng

	// sharedTypes records, for each position reachable through a shared
	// pointer, the type tag it was first validated at ([I5]).
	sharedTypes map[int64]uintptr
}

type rng struct{ start, end int64 }

// NewValidator returns a Validator over buf, governed by p.
func NewValidator(buf []byte, p Profile) *Validator {
	return &Validator{buf: buf, profile: p}
}

// Validate validates buf as an archive whose root type is T, governed by
// p. It is the entry point [AccessChecked] uses.
func Validate[T any](buf []byte, p Profile) error {
	size, align := unsafe2.Layout[T]()
	if int64(len(buf)) < int64(size) {
		return &ValidationError{Position: 0, Kind: ErrOutOfBounds, Detail: "buffer shorter than root type"}
	}

	start := int64(len(buf) - size)
	v := NewValidator(buf, p)
	if start%int64(align) != 0 {
		return &ValidationError{Position: start, Kind: ErrMisaligned, Detail: "root position"}
	}

	// root views the archive's actual bytes at start, not a zero-valued T:
	// every ValidateAt reads fields off its receiver (a pointer's delta, a
	// sequence's length, a union's tag) to know what to check next, so it
	// must see what was really written, the same unchecked-cast view
	// [Access] hands a caller who has already validated separately.
	root := unsafe2.Cast[T](unsafe.SliceData(buf[start:]))
	if val, ok := any(root).(Validatable); ok {
		return val.ValidateAt(v, start)
	}
	// T has no pointers to validate; the bounds check above is sufficient.
	return nil
}

// bounds checks that [start, start+size) lies within the buffer, returning
// the end offset.
func (v *Validator) bounds(start, size int64) (end int64, err error) {
	if start < 0 || size < 0 || start+size > int64(len(v.buf)) {
		return 0, &ValidationError{Position: start, Kind: ErrOutOfBounds}
	}
	return start + size, nil
}

// align checks that start satisfies the given alignment.
func (v *Validator) align(start int64, align int) error {
	if align <= 1 {
		return nil
	}
	if v.profile.Align == AlignPacked {
		return nil
	}
	if start%int64(align) != 0 {
		return &ValidationError{Position: start, Kind: ErrMisaligned}
	}
	return nil
}

// PushSubtree checks that start lies strictly before ptrAt, the absolute
// storage position of the pointer whose target this is ([I2]), then checks
// [start, start+size) against every previously closed subtree for overlap
// ([I4]), then records it as closed. Called once per owned subtree a
// pointer is resolved into, before recursing into it.
func (v *Validator) PushSubtree(ptrAt, start, size int64, align int) (end int64, err error) {
	if start >= ptrAt {
		return 0, &ValidationError{Position: start, Kind: ErrForwardPointer}
	}
	if err := v.align(start, align); err != nil {
		return 0, err
	}
	end, err = v.bounds(start, size)
	if err != nil {
		return 0, err
	}

	i := sort.Search(len(v.closed), func(i int) bool { return v.closed[i].start >= start })
	if i > 0 && v.closed[i-1].end > start {
		return 0, &ValidationError{Position: start, Kind: ErrSubtreeOverlap}
	}
	if i < len(v.closed) && v.closed[i].start < end {
		return 0, &ValidationError{Position: start, Kind: ErrSubtreeOverlap}
	}

	v.closed = append(v.closed, rng{})
	copy(v.closed[i+1:], v.closed[i:])
	v.closed[i] = rng{start, end}

	trace.Log(nil, "push subtree", "%d:%d", start, end)
	return end, nil
}

// ValidateRawRoot checks that buf is large enough and correctly aligned to
// hold a root value of the given size and alignment, without recursing into
// any pointers the root might hold. This is what a generic consumer with no
// compile-time root type — `cmd/zcadump`, most notably — can check about an
// archive: everything past the header shape requires the Go type that
// [Validate] takes as a type parameter.
func ValidateRawRoot(buf []byte, p Profile, size, align int) error {
	if int64(len(buf)) < int64(size) {
		return &ValidationError{Position: 0, Kind: ErrOutOfBounds, Detail: "buffer shorter than declared root size"}
	}
	start := int64(len(buf) - size)
	v := NewValidator(buf, p)
	return v.align(start, align)
}

// ValidateShared validates the subtree at pos at most once per position:
// the first caller for a given pos actually recurses (via validate);
// later callers only check that typeTag agrees with the first caller's,
// implementing the shared-pointer consistency rule ([I5],
// [ErrSharedPointerTypeConflict]).
func (v *Validator) ValidateShared(pos int64, typeTag uintptr, validate func() error) error {
	if v.sharedTypes == nil {
		v.sharedTypes = make(map[int64]uintptr)
	}
	if prior, ok := v.sharedTypes[pos]; ok {
		if prior != typeTag {
			return &ValidationError{Position: pos, Kind: ErrSharedPointerTypeConflict}
		}
		return nil
	}
	v.sharedTypes[pos] = typeTag
	return validate()
}

// ValidateAt implements [Validatable] for String: the long representation
// must point at a valid UTF-8 byte range that does not overlap a sibling
// subtree.
func (v *String) ValidateAt(val *Validator, start int64) error {
	if v.isShort() {
		return nil
	}
	n := int64(v.Len())
	ptrAt := start + int64(unsafe.Offsetof(String{}.ptr))
	target := ptrAt + int64(v.ptr.delta)
	end, err := val.PushSubtree(ptrAt, target, n, 1)
	if err != nil {
		return err
	}
	if !utf8.Valid(val.buf[target:end]) {
		return &ValidationError{Position: target, Kind: ErrInvalidEncoding, Detail: "string is not valid UTF-8"}
	}
	return nil
}

// ValidateSequenceAt validates the [Sequence] s stored at start, and each of
// its elements that is [Validatable]. Sequence has no ValidateAt method of
// its own, so [Validate] does not call this for a Sequence root.
func ValidateSequenceAt[T any](s *Sequence[T], val *Validator, start int64) error {
	if s.len == 0 {
		return nil
	}
	elemSize, elemAlign := unsafe2.Layout[T]()
	ptrAt := start + int64(unsafe.Offsetof(Sequence[T]{}.ptr))
	target := ptrAt + int64(s.ptr.delta)
	end, err := val.PushSubtree(ptrAt, target, int64(s.len)*int64(elemSize), elemAlign)
	if err != nil {
		return err
	}

	var zero T
	if _, ok := any(&zero).(Validatable); !ok {
		return nil
	}
	for i := range int(s.len) {
		elemAt := target + int64(i)*int64(elemSize)
		elem := unsafe2.ByteLoad[T](unsafe.SliceData(val.buf[elemAt:end]), 0)
		if val2, ok := any(&elem).(Validatable); ok {
			if err := val2.ValidateAt(val, elemAt); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateBoxAt validates the [Box] b stored at start, and its referent if
// that is [Validatable]. Box has no ValidateAt method of its own, so
// [Validate] does not call this for a Box root.
func ValidateBoxAt[T any](b *Box[T], val *Validator, start int64) error {
	size, align := unsafe2.Layout[T]()
	ptrAt := start + int64(unsafe.Offsetof(Box[T]{}.ptr))
	target := ptrAt + int64(b.ptr.delta)
	_, err := val.PushSubtree(ptrAt, target, int64(size), align)
	if err != nil {
		return err
	}
	ref := unsafe2.Cast[T](unsafe.SliceData(val.buf[target:]))
	if val2, ok := any(ref).(Validatable); ok {
		return val2.ValidateAt(val, target)
	}
	return nil
}

// ValidateAt implements [Validatable] for Bool: the stored byte must decode
// to exactly 0 or 1 (§7).
func (v *Bool) ValidateAt(val *Validator, start int64) error {
	if err := validateBool(byte(v.byte)); err != nil {
		return &ValidationError{Position: start, Kind: err}
	}
	return nil
}

// ValidateAt implements [Validatable] for Char: the stored code point must
// be a valid, non-surrogate Unicode scalar value (§7).
func (v *Char) ValidateAt(val *Validator, start int64) error {
	if err := validateChar(v.Get(val.profile.order())); err != nil {
		return &ValidationError{Position: start, Kind: err}
	}
	return nil
}

// ValidateAt implements [Validatable] for a [Union]: the discriminant must
// name one of Storage's declared variants ([ErrInvalidTag]). The payload
// bytes themselves are not recursed into — Union has no static Go type for
// its active variant, so a caller validating a union-bearing archive must
// check the tag itself (via [Union.GetTag]) and validate the variant it
// names explicitly, the same division [WidePtr] has between a selector and
// its vtable's own validator.
func (u *Union[Storage]) ValidateAt(val *Validator, start int64) error {
	var zero Storage
	if err := validateUnionTag(u.Tag, zero.NumVariants()); err != nil {
		return &ValidationError{Position: start, Kind: err}
	}
	return nil
}

// ValidateAt implements [Validatable] for a [WidePtr]: it looks up the
// registered [VTable] for its selector and defers to that vtable's own
// validator, which knows the concrete referent's size and shape.
func (w *WidePtr) ValidateAt(val *Validator, start int64) error {
	vt := w.VTable()
	if vt == nil {
		return &ValidationError{Position: start, Kind: ErrUnknownVtable}
	}
	ptrAt := start + int64(unsafe.Offsetof(WidePtr{}.ptr))
	target := ptrAt + int64(w.ptr.delta)
	end, err := val.PushSubtree(ptrAt, target, int64(vt.Size), vt.Align)
	if err != nil {
		return err
	}
	return vt.ValidateAt(val, target, end)
}

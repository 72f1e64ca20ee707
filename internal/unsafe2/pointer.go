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

// Package unsafe2 provides a more convenient interface for performing unsafe
// operations than Go's built-in package unsafe.
//
// The archive encoder and validator both need to reinterpret raw bytes as
// typed values at computed offsets without going through reflection; this
// package centralizes every such cast so that the rest of the module never
// spells out unsafe.Pointer directly.
package unsafe2

import (
	"sync"
	"unsafe"

	"go.zca.dev/zca/internal/unsafe2/layout"
)

// NoCopy is a zero-size marker: embedding it in a struct makes go vet's
// copylocks check report copies of that struct.
type NoCopy [0]sync.Mutex

const (
	PointerSize  = int(unsafe.Sizeof(unsafe.Pointer(nil)))
	PointerAlign = int(unsafe.Sizeof(unsafe.Pointer(nil)))

	Int32Size  = int(unsafe.Sizeof(int32(0)))
	Int32Align = int(unsafe.Sizeof(int32(0)))

	Int64Size  = int(unsafe.Sizeof(int64(0)))
	Int64Align = int(unsafe.Sizeof(int64(0)))
)

// Int is any integer type usable as an offset or length.
type Int interface {
	int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		uintptr
}

// Layout returns the size and alignment of a given type.
func Layout[T any]() (size, align int) {
	return layout.Size[T](), layout.Align[T]()
}

// BitCast performs an unsafe bitcast from one type to another of the same
// size. [String] and [SliceToString] use it to reinterpret a pointer/length
// pair as a string header.
func BitCast[To, From any](v From) To {
	return *(*To)(unsafe.Pointer(&v))
}

// Cast casts one pointer type to another.
func Cast[To, From any](p *From) *To {
	return (*To)(unsafe.Pointer(p))
}

// Add adds the given offset to p, scaled by the size of E.
func Add[P ~*E, E any, I Int](p P, n I) P {
	return P(unsafe.Add(unsafe.Pointer(p), uintptr(layout.Size[E]())*uintptr(n)))
}

// Sub computes the difference between two pointers, scaled by the size of E.
func Sub[P ~*E, E any](p1, p2 P) int {
	return int(uintptr(unsafe.Pointer(p1))-uintptr(unsafe.Pointer(p2))) / layout.Size[E]()
}

// Load loads a value of the given type at the given index.
func Load[P ~*E, E any, I Int](p P, n I) E {
	return *Add(p, n)
}

// Store stores a value at the given index.
func Store[P ~*E, E any, I Int](p P, n I, v E) {
	*Add(p, n) = v
}

// ByteAdd adds the given offset to p, without scaling. This is how a
// relative pointer's Δ is applied: Δ is always a byte count, never scaled by
// the referent's size.
func ByteAdd[P ~*E, E any, I Int](p P, n I) P {
	return P(unsafe.Add(unsafe.Pointer(p), uintptr(n)))
}

// ByteLoad loads a value of the given type at the given byte offset from p.
func ByteLoad[T any, P ~*E, E any, I Int](p P, n I) T {
	return *Cast[T](ByteAdd(p, n))
}

// ByteStore stores a value of the given type at the given byte offset from p.
func ByteStore[T any, P ~*E, E any, I Int](p P, n I, v T) {
	*Cast[T](ByteAdd(p, n)) = v
}

// Slice is like [unsafe.Slice], but isn't as branchy.
func Slice[P ~*E, E any, I Int](p P, length I) []E {
	return Slice2(p, length, length)
}

// Slice2 is like [unsafe.Slice], but allows specifying length and capacity
// separately.
func Slice2[P ~*E, E any, I Int](p P, length, cap I) []E {
	return unsafe.Slice(p, cap)[:length]
}

// Bytes converts a pointer into a slice of its contents.
func Bytes[P ~*E, E any](p P) []byte {
	return Slice(Cast[byte](p), layout.Size[E]())
}

// String is like [unsafe.String], but isn't as branchy. It is how an
// archived string view is constructed over a byte range inside the buffer
// without copying.
func String[P ~*E, E any, I Int](p P, length I) string {
	str := struct {
		ptr P
		len int
	}{p, int(length) * layout.Size[E]()}
	return BitCast[string](str)
}

// Copy copies n elements from one pointer to the other.
func Copy[P ~*E, E any, I Int](dst, src P, n I) {
	copy(Slice(dst, n), Slice(src, n))
}

// Clear zeros n elements at p.
func Clear[P ~*E, E any, I Int](p P, n I) {
	clear(Slice(p, n))
}

var (
	alwaysFalse bool
	sink        unsafe.Pointer //nolint:unused
)

// Escape forces p to escape to the heap.
func Escape[P ~*E, E any](p P) P {
	if alwaysFalse {
		sink = unsafe.Pointer(p)
	}
	return p
}

// NoEscape hides a pointer from escape analysis, so that passing the result
// on does not by itself force the pointee to be considered heap-escaping.
func NoEscape[P ~*E, E any](p P) P {
	//nolint:staticcheck // False positive: complains that p^0 does nothing.
	return P((AddrOf(p) ^ 0).AssertValid())
}

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

package unsafe2

import (
	"fmt"
	"unsafe"

	"go.zca.dev/zca/internal/unsafe2/layout"
)

// Addr is a typed raw address, used for arithmetic that would be awkward to
// express through a real pointer (e.g. computing a Δ between two positions
// for a relative pointer).
type Addr[T any] uintptr

// AddrOf gets the address of a pointer.
func AddrOf[P ~*E, E any](p P) Addr[E] {
	return Addr[E](unsafe.Pointer(p))
}

// AssertValid reinterprets this address as a live pointer. The caller is
// asserting that the address was produced by arithmetic over a still-alive
// allocation; relative-pointer resolution ultimately bottoms out here.
//
//go:nosplit
func (a Addr[T]) AssertValid() *T {
	return (*T)(unsafe.Pointer(a))
}

// Add adds n*sizeof(T) to this address.
func (a Addr[T]) Add(n int) Addr[T] {
	return a + Addr[T](n*layout.Size[T]())
}

// Sub computes (a-b)/sizeof(T).
func (a Addr[T]) Sub(b Addr[T]) int {
	return int(a-b) / layout.Size[T]()
}

// Misalign returns the misalignment for an address: the byte offset to the
// previous, and to the next, align-aligned address. align must be a power of
// two. If a is already aligned, both are 0.
func (a Addr[T]) Misalign(align int) (prev, next int) {
	addr := int(a)
	prev = addr & (align - 1)
	next = (align - addr) & (align - 1)
	return prev, next
}

// Misalign is like [Addr.Misalign], taking a live pointer instead of an
// already-converted Addr.
func Misalign[P ~*E, E any](p P, align int) (prev, next int) {
	return AddrOf(p).Misalign(align)
}

// Format implements [fmt.Formatter].
func (a Addr[T]) Format(state fmt.State, verb rune) {
	if verb == 'v' {
		fmt.Fprintf(state, "%#x", uintptr(a))
		return
	}
	fmt.Fprintf(state, fmt.FormatString(state, verb), uintptr(a))
}

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
	"go.zca.dev/zca/internal/unsafe2"
	"go.zca.dev/zca/internal/xsync"
)

// Ptr32 is a narrow relative pointer (§4.1): the signed byte delta from
// Ptr32's own address to the address of its referent, stored as a plain
// int32. Casting a buffer to a type containing a Ptr32 and reading this
// field never touches memory outside of the four bytes it occupies; the
// delta is only interpreted relative to &p once the caller asks to
// [Ptr32.Resolve] it.
//
// A zero Ptr32 points at itself, which never occurs for a legally archived
// value (every referent is emplaced strictly before or after its pointer,
// never coincident with it), so a zero Ptr32 is available to higher layers
// as a niche "null" representation if they want one.
type Ptr32[T any] struct {
	delta int32
}

// Resolve returns the referent of p, computed relative to p's own address.
// The caller must already have established, e.g. via [Validate], that this
// is safe.
func (p *Ptr32[T]) Resolve() *T {
	return unsafe2.Cast[T](unsafe2.ByteAdd(p, p.delta))
}

// IsNil reports whether p is the niche "null" representation (delta zero).
func (p *Ptr32[T]) IsNil() bool {
	return p.delta == 0
}

// emplacePtr32 writes the delta from `at` (the absolute position the
// pointer itself will occupy once flushed) to `target` (the absolute
// position of the already-serialized referent). Both positions are
// sink-relative byte offsets, not live addresses — relative pointers are
// computed this way during serialization because the final buffer address
// is not known until the whole archive has been written out (§4.6).
func emplacePtr32(at, target int64) (int32, error) {
	delta := target - at
	if delta < int64(minInt32) || delta > int64(maxInt32) {
		return 0, &OffsetError{At: at, Target: target, Width: 4}
	}
	if delta == 0 {
		trace.Assert(false, "zca: relative pointer resolves to itself at %d", at)
	}
	return int32(delta), nil
}

const (
	minInt32 = -1 << 31
	maxInt32 = 1<<31 - 1
)

// Selector identifies one entry in a process-wide [VTable] registry: the
// discriminant a [WidePtr] carries alongside its address so that a trait
// object's dynamic type can be recovered without storing a type name or
// running any code from the archive itself (§4.10).
type Selector uint32

// VTable is the minimal, registrable contract a trait-object implementation
// must provide to be addressable from a [WidePtr]: enough to validate and
// to cast, nothing that would let the archive itself drive control flow.
type VTable struct {
	// Selector is this vtable's registry key, embedded redundantly so a
	// *VTable can be traced back to its Selector.
	Selector Selector
	// Size and Align describe the archived layout of the concrete type
	// this vtable stands for, used by the validator to bounds-check the
	// referent without knowing its Go type.
	Size, Align int
	// ValidateAt validates the referent of a WidePtr carrying this
	// selector, given the subtree range it is permitted to occupy.
	ValidateAt func(v *Validator, at int64, end int64) error
}

// vtableRegistry is the process-wide vtable registry (§5): populated at
// program initialization, then read concurrently from validators and
// accessors running on arbitrary goroutines. xsync.Map gives the read
// path a lock-free fast path via sync.Map instead of a mutex-guarded
// plain map.
var vtableRegistry xsync.Map[Selector, *VTable]

// RegisterVTable installs vt into the process-wide registry under
// vt.Selector, so that [WidePtr] values carrying that selector can be
// validated and resolved. Intended to be called from package init.
func RegisterVTable(vt *VTable) {
	if vt == nil || vt.Selector == 0 {
		panic("zca: RegisterVTable requires a non-zero Selector")
	}
	vtableRegistry.Store(vt.Selector, vt)
}

// LookupVTable returns the vtable registered for sel, or nil if none was
// registered.
func LookupVTable(sel Selector) *VTable {
	vt, _ := vtableRegistry.Load(sel)
	return vt
}

// WidePtr is a relative pointer paired with a [Selector] naming the
// concrete archived type of its referent, used for trait-object-shaped
// fields whose concrete type varies per value (§4.10). Unlike [Ptr32], a
// WidePtr's referent cannot be read with a static Go type: callers go
// through the registered VTable's accessors instead.
type WidePtr struct {
	ptr Ptr32[byte]
	sel Selector
}

// Selector returns the discriminant naming w's referent's concrete type.
func (w *WidePtr) Selector() Selector { return w.sel }

// VTable looks up the registered vtable for w's selector, or nil if the
// archive references an unregistered type (a validation error by the time
// this is reachable, but Resolve-adjacent code may still want the nil
// check).
func (w *WidePtr) VTable() *VTable { return LookupVTable(w.sel) }

// Addr returns the absolute address of w's referent.
func (w *WidePtr) Addr() *byte { return w.ptr.Resolve() }

func emplaceWidePtr(at, target int64, sel Selector) (WidePtr, error) {
	delta, err := emplacePtr32(at, target)
	if err != nil {
		return WidePtr{}, err
	}
	return WidePtr{ptr: Ptr32[byte]{delta: delta}, sel: sel}, nil
}

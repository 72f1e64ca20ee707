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

// Package shared implements the shared-pointer deduplication registry
// (C5): a map from a source value's identity to the archive position it
// was emplaced at, so that two Rc/Arc-shaped references to the same Go
// value are serialized once and both point at the same bytes ([I5]).
package shared

import "unsafe"

// key identifies one source value: its address, plus a tag distinguishing
// the archived type it was serialized as (the same Go value can
// legitimately be shared at two different archived types, e.g. behind two
// differently-shaped interfaces, and those must not be confused for each
// other).
type key struct {
	addr unsafe.Pointer
	tag  uintptr
}

// Registry is a process-local (per-[Serializer]) table of already-emplaced
// shared values.
//
// The zero Registry is empty and ready to use.
type Registry struct {
	positions map[key]int64
}

// Lookup reports the archive position identity was previously emplaced
// at, if any.
func (r *Registry) Lookup(identity unsafe.Pointer, typeTag uintptr) (pos int64, ok bool) {
	if r.positions == nil {
		return 0, false
	}
	pos, ok = r.positions[key{identity, typeTag}]
	return pos, ok
}

// Record notes that identity was emplaced at pos.
func (r *Registry) Record(identity unsafe.Pointer, typeTag uintptr, pos int64) {
	if r.positions == nil {
		r.positions = make(map[key]int64)
	}
	r.positions[key{identity, typeTag}] = pos
}

// Len reports the number of distinct shared values recorded so far.
func (r *Registry) Len() int { return len(r.positions) }

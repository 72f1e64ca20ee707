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
	"cmp"
	"iter"
	"slices"
	"unsafe"

	"github.com/dchest/siphash"

	"go.zca.dev/zca/internal/arena"
	"go.zca.dev/zca/internal/swiss"
	"go.zca.dev/zca/internal/unsafe2"
)

// mapSeedKey0/mapSeedKey1 are the fixed siphash key halves used to derive
// a per-table hash seed from a small per-archive nonce (§4.8, C7). They
// are not secret — archived maps are not a hash-flooding attack surface
// the way a network-facing map would be, since the whole archive is
// already trusted, validated data by the time a lookup runs — they exist
// only to spread the nonce across a 64-bit seed with better statistical
// properties than the nonce alone.
const (
	mapSeedKey0 = 0x9ae16a3b2f90404f
	mapSeedKey1 = 0xc949d7c7519cdbe3
)

// seedFor derives a swisstable hash seed from a per-serializer nonce,
// grounding the table's randomized seeding in siphash rather than an
// unseeded PRNG (a [Serializer] has no entropy source of its own, since
// two calls to SerializeRoot must remain deterministic for golden tests).
func seedFor(nonce uint64) uint64 {
	return siphash.Hash(mapSeedKey0, mapSeedKey1, unsafe2.Bytes(&nonce))
}

// Map is an archived map (C7), a relative pointer to a swisstable laid
// out directly in the archive. K must be one of the integer key kinds
// [swiss.Key] supports; there is no string- or byte-slice-keyed archived
// map.
type Map[K swissKey, V any] struct {
	ptr Ptr32[swiss.Table[K, V]]
}

// swissKey is a local alias for [swiss.Key], used to spell the key
// constraint in exported API.
type swissKey = swiss.Key

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	if m.ptr.IsNil() {
		return 0
	}
	return m.table().Len()
}

// Get looks up k, returning its value and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if m.ptr.IsNil() {
		var zero V
		return zero, false
	}
	v := m.table().Lookup(k)
	if v == nil {
		var zero V
		return zero, false
	}
	return *v, true
}

// All ranges over the map's entries in table order, which is unspecified
// and not stable across archives of the same logical data (§4.8).
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	if m.ptr.IsNil() {
		return func(func(K, V) bool) {}
	}
	return m.table().All()
}

func (m *Map[K, V]) table() *swiss.Table[K, V] {
	return m.ptr.Resolve()
}

// ValidateAt implements [Validatable] for Map: the table's fixed header
// (len/soft/hard/seed) is bounds-checked first, since the table's full
// byte extent — control bytes, keys, and values — is only knowable once
// hard has been read out of it; that full extent is then pushed as a
// single owned subtree, recursing no further, since swiss.Table's control
// bytes/keys/values are not independently addressable archived values.
func (m *Map[K, V]) ValidateAt(val *Validator, start int64) error {
	if m.ptr.IsNil() {
		return nil
	}

	ptrAt := start + int64(unsafe.Offsetof(Map[K, V]{}.ptr))
	target := ptrAt + int64(m.ptr.delta)
	if target >= ptrAt {
		return &ValidationError{Position: target, Kind: ErrForwardPointer}
	}

	headerSize := swiss.HeaderSize[K, V]()
	if _, err := val.bounds(target, int64(headerSize)); err != nil {
		return err
	}
	if err := val.align(target, 8); err != nil {
		return err
	}

	header := unsafe2.Cast[swiss.Table[K, V]](unsafe.SliceData(val.buf[target:]))
	size, align := swiss.LayoutForCap[K, V](header.Cap())

	_, err := val.PushSubtree(ptrAt, target, int64(size), align)
	return err
}

// SerializeMap is the [Serializable] for a Map built from a plain Go map.
// V must be pointer-free (the swiss table does not participate in GC
// tracing, per [arena.Arena]'s design); keys and values are written
// verbatim, so V's archived mirror must already be the fixed-size form
// (use [Box] or a [Ptr32] field inside V for anything variable-length).
type SerializeMap[K swissKey, V any] struct {
	Entries map[K]V
	Nonce   uint64
}

func (s SerializeMap[K, V]) ArchivedLayout() (size, align int) {
	var v Map[K, V]
	return int(unsafe.Sizeof(v)), int(unsafe.Alignof(v))
}

func (s SerializeMap[K, V]) Serialize(ser *Serializer) (Resolver, error) {
	if len(s.Entries) == 0 {
		return ResolverFunc(func(at int64, out []byte) error { return nil }), nil
	}

	// Entries are staged on the Serializer's scratch arena (C4) rather than
	// a plain Go slice: swiss.Entry is pointer-free, so there is nothing
	// here for the GC to trace, and the arena is rewound once the table has
	// been copied into the sink.
	mark := ser.Scratch.Mark()
	defer ser.Scratch.Rewind(mark)

	staged := arena.NewSlice[swiss.Entry[K, V]](ser.Scratch, 0)
	for k, v := range s.Entries {
		staged = staged.AppendOne(ser.Scratch, swiss.KV(k, v))
	}
	entries := staged.Raw()
	// Go map iteration order is random; inserting in key order keeps the
	// table's slot layout, and so the archive, deterministic.
	slices.SortFunc(entries, func(a, b swiss.Entry[K, V]) int { return cmp.Compare(a.Key, b.Key) })

	size, align := swiss.Layout[K, V](len(entries))
	ser.Sink.PadTo(align)

	scratch := make([]byte, 0, size)
	scratch, _ = swiss.New(scratch, seedFor(s.Nonce), nil, entries...)
	tablePos := ser.Sink.Write(scratch)

	return ResolverFunc(func(at int64, out []byte) error {
		ptr, err := PointerTo[swiss.Table[K, V]](at, tablePos)
		if err != nil {
			return err
		}
		v := Map[K, V]{ptr: ptr}
		copy(out, unsafe2.Bytes(&v))
		return nil
	}), nil
}

// Set is an archived set: a [Map] keyed on the element type with an empty
// struct{} value, reusing the swisstable's occupied/empty control bytes as
// the membership test.
type Set[K swissKey] struct {
	m Map[K, struct{}]
}

// Len returns the number of elements.
func (s *Set[K]) Len() int { return s.m.Len() }

// Has reports whether k is a member.
func (s *Set[K]) Has(k K) bool {
	_, ok := s.m.Get(k)
	return ok
}

// All ranges over the set's members.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range s.m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// ValidateAt implements [Validatable] for Set by delegating to the
// embedded Map's validation — a Set has no fields of its own.
func (s *Set[K]) ValidateAt(val *Validator, start int64) error {
	return s.m.ValidateAt(val, start)
}

// SerializeSet is the [Serializable] for a Set built from a plain Go set
// (represented as map[K]struct{}, the idiomatic Go set shape).
type SerializeSet[K swissKey] struct {
	Elems map[K]struct{}
	Nonce uint64
}

func (s SerializeSet[K]) ArchivedLayout() (size, align int) {
	var v Set[K]
	return int(unsafe.Sizeof(v)), int(unsafe.Alignof(v))
}

func (s SerializeSet[K]) Serialize(ser *Serializer) (Resolver, error) {
	inner := SerializeMap[K, struct{}]{Entries: s.Elems, Nonce: s.Nonce}
	return inner.Serialize(ser)
}

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

	"github.com/tiendc/go-deepcopy"
)

// Deserializable is implemented by archived types with a defined route
// back to an owned, GC-visible Go value (C10) — the optional inverse of
// [Serializable]. Not every archived type needs one: most callers are
// expected to read the archive in place with [Access] and never
// deserialize at all, which is the entire performance point of this
// format. Deserialize exists for the minority of callers that need a
// value they can mutate and keep past the archive buffer's lifetime.
type Deserializable[T any] interface {
	// Deserialize builds an owned copy of this value using d's pool
	// policy.
	Deserialize(d *Deserializer) (T, error)
}

// PoolPolicy controls whether [Deserializer] reuses previously-allocated
// Go values instead of allocating fresh ones for repeated deserialization
// of the same archive (§5): reuse avoids GC pressure in a hot loop that
// deserializes many archives of the same shape, at the cost of requiring
// the caller to give every prior result back via [Deserializer.Unpool]
// before it is safe to reuse.
type PoolPolicy int

const (
	// NoPool allocates a fresh Go value on every Deserialize call. Safe
	// by default: nothing a caller holds on to is ever mutated out from
	// under them.
	NoPool PoolPolicy = iota
	// Pool reuses Go values placed back into the Deserializer's pool by
	// [Deserializer.Unpool]. A pooled value handed out by Deserialize
	// must not be retained past the next call that might reuse it.
	Pool
)

// Deserializer drives the optional deserialize step (C10): converting
// zero-copy archive views back into owned Go values.
type Deserializer struct {
	Policy PoolPolicy

	// pools is keyed by reflect.Type rather than a zero value of T: several
	// Deserialize results (slices, maps) are themselves uncomparable, so
	// they cannot serve as a map key directly, and a type identity is what
	// the pool actually needs to bucket by.
	pools map[reflect.Type][]any
}

// NewDeserializer returns a Deserializer using the given pool policy.
func NewDeserializer(policy PoolPolicy) *Deserializer {
	return &Deserializer{Policy: policy}
}

// Unpool returns a previously-deserialized value of type T to the pool,
// making it available for reuse by a later Deserialize call. A no-op
// under [NoPool].
func Unpool[T any](d *Deserializer, v *T) {
	if d.Policy != Pool || v == nil {
		return
	}
	if d.pools == nil {
		d.pools = make(map[reflect.Type][]any)
	}
	key := reflect.TypeFor[T]()
	d.pools[key] = append(d.pools[key], v)
}

// poolGet returns a pointer to a T reused from a prior [Unpool] call under
// [Pool], or a freshly allocated, zero-valued one under [NoPool] or when
// the pool is empty. Unlike Unpool's caller, poolGet does not reset *T to
// its zero value on reuse: for the slice- and map-shaped T this package
// pools, the whole point of reuse is keeping the prior allocation's
// backing array/buckets around, so each call site clears only the
// visible contents it is about to overwrite.
func poolGet[T any](d *Deserializer) *T {
	if d.Policy != Pool || d.pools == nil {
		return new(T)
	}
	key := reflect.TypeFor[T]()
	bucket := d.pools[key]
	if len(bucket) == 0 {
		return new(T)
	}
	last := bucket[len(bucket)-1].(*T)
	d.pools[key] = bucket[:len(bucket)-1]
	return last
}

// DeserializeString returns an owned copy of an archived string, safe to
// keep past the archive buffer's lifetime.
func DeserializeString(d *Deserializer, s *String) string {
	return string([]byte(s.Get()))
}

// DeserializeSequence returns an owned copy of an archived sequence of
// values that are themselves deep-copied with [deepcopy], used for
// element types too structurally complex (nested pointers, maps) to be
// worth a hand-written Deserializable implementation. Under [Pool], the
// backing slice is taken from a slice [Unpool] previously returned to d,
// reusing its array when it is already large enough instead of allocating
// a new one.
func DeserializeSequence[T any](d *Deserializer, s *Sequence[T]) ([]T, error) {
	elems := s.Get()
	slot := poolGet[[]T](d)
	if cap(*slot) < len(elems) {
		*slot = make([]T, len(elems))
	} else {
		*slot = (*slot)[:len(elems)]
	}
	if err := deepcopy.Copy(slot, &elems); err != nil {
		return nil, err
	}
	return *slot, nil
}

// DeserializeMap returns an owned copy of an archived map. Under [Pool],
// the map itself is taken from a map [Unpool] previously returned to d and
// cleared for reuse instead of allocating a new one.
func DeserializeMap[K swissKey, V any](d *Deserializer, m *Map[K, V]) (map[K]V, error) {
	slot := poolGet[map[K]V](d)
	if *slot == nil {
		*slot = make(map[K]V, m.Len())
	} else {
		clear(*slot)
	}
	for k, v := range m.All() {
		var vCopy V
		if err := deepcopy.Copy(&vCopy, &v); err != nil {
			return nil, err
		}
		(*slot)[k] = vCopy
	}
	return *slot, nil
}
